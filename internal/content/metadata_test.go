package content

import (
	"context"
	"testing"

	"notebook-navigator/internal/settings"
)

func TestMetadataProviderProcessFile(t *testing.T) {
	t.Parallel()
	v := testVault(t, map[string]string{
		"notes/meeting.md": "---\ntitle: Weekly Sync\ncreated: \"2024-01-15\"\n---\nNotes.\n",
	})
	p := NewMetadataProvider(v)
	file := resolve(t, v, "notes/meeting.md")

	update, processed, err := p.ProcessFile(context.Background(), file, nil, settings.Default())
	if err != nil || !processed {
		t.Fatalf("ProcessFile: processed=%v err=%v", processed, err)
	}
	if update.Metadata == nil {
		t.Fatal("expected metadata in update")
	}
	if update.Metadata.Name != "Weekly Sync" {
		t.Errorf("name = %q, want %q", update.Metadata.Name, "Weekly Sync")
	}
	if update.Metadata.Created != "2024-01-15" {
		t.Errorf("created = %q, want %q", update.Metadata.Created, "2024-01-15")
	}
}

func TestMetadataProviderNameFallsBackToFileName(t *testing.T) {
	t.Parallel()
	v := testVault(t, map[string]string{
		"inbox/quick note.md": "no frontmatter here\n",
	})
	p := NewMetadataProvider(v)
	file := resolve(t, v, "inbox/quick note.md")

	update, _, err := p.ProcessFile(context.Background(), file, nil, settings.Default())
	if err != nil {
		t.Fatal(err)
	}
	if update.Metadata.Name != "quick note" {
		t.Errorf("name = %q, want %q", update.Metadata.Name, "quick note")
	}
	if update.Metadata.Created != "" {
		t.Errorf("created = %q, want empty", update.Metadata.Created)
	}
}

func TestMetadataProviderCustomKeys(t *testing.T) {
	t.Parallel()
	v := testVault(t, map[string]string{
		"a.md": "---\naliases: Nickname\nborn: \"2020-06-01\"\ntitle: Ignored\n---\n",
	})
	p := NewMetadataProvider(v)
	file := resolve(t, v, "a.md")

	s := settings.Default()
	s.MetadataNameKey = "aliases"
	s.MetadataCreatedKey = "born"
	update, _, err := p.ProcessFile(context.Background(), file, nil, s)
	if err != nil {
		t.Fatal(err)
	}
	if update.Metadata.Name != "Nickname" {
		t.Errorf("name = %q, want %q", update.Metadata.Name, "Nickname")
	}
	if update.Metadata.Created != "2020-06-01" {
		t.Errorf("created = %q, want %q", update.Metadata.Created, "2020-06-01")
	}
}
