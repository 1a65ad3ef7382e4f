package content

import (
	"context"
	"reflect"
	"testing"

	"notebook-navigator/internal/settings"
)

func TestTagsProviderProcessFile(t *testing.T) {
	t.Parallel()
	v := testVault(t, map[string]string{
		"a.md": "---\ntags: [Project, Home/Office]\n---\nText with #Inline and #project and #123 and #nested/tag.\n",
	})
	p := NewTagsProvider(v)
	file := resolve(t, v, "a.md")

	s := settings.Default()
	s.FrontmatterTags = true
	update, processed, err := p.ProcessFile(context.Background(), file, nil, s)
	if err != nil || !processed {
		t.Fatalf("ProcessFile: processed=%v err=%v", processed, err)
	}
	want := []string{"home/office", "inline", "nested/tag", "project"}
	if update.Tags == nil || !reflect.DeepEqual(*update.Tags, want) {
		t.Errorf("tags = %v, want %v", update.Tags, want)
	}
}

func TestTagsProviderFrontmatterDisabled(t *testing.T) {
	t.Parallel()
	v := testVault(t, map[string]string{
		"a.md": "---\ntags: [fmonly]\n---\nBody #inline\n",
	})
	p := NewTagsProvider(v)
	file := resolve(t, v, "a.md")

	s := settings.Default()
	s.FrontmatterTags = false
	update, _, err := p.ProcessFile(context.Background(), file, nil, s)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"inline"}
	if update.Tags == nil || !reflect.DeepEqual(*update.Tags, want) {
		t.Errorf("tags = %v, want %v", update.Tags, want)
	}
}

func TestTagsProviderIgnoresCodeBlocks(t *testing.T) {
	t.Parallel()
	v := testVault(t, map[string]string{
		"a.md": "Real #tag here.\n\n```\n#notatag\n```\n\nAlso `#inline-code` ignored.\n",
	})
	p := NewTagsProvider(v)
	file := resolve(t, v, "a.md")

	update, _, err := p.ProcessFile(context.Background(), file, nil, settings.Default())
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"tag"}
	if update.Tags == nil || !reflect.DeepEqual(*update.Tags, want) {
		t.Errorf("tags = %v, want %v", update.Tags, want)
	}
}

func TestTagsProviderEmptyResultClearsTags(t *testing.T) {
	t.Parallel()
	v := testVault(t, map[string]string{"a.md": "No tags here, not even #123.\n"})
	p := NewTagsProvider(v)
	file := resolve(t, v, "a.md")

	update, _, err := p.ProcessFile(context.Background(), file, nil, settings.Default())
	if err != nil {
		t.Fatal(err)
	}
	if update.Tags == nil {
		t.Fatal("expected non-nil tags pointer to clear stored value")
	}
	if len(*update.Tags) != 0 {
		t.Errorf("tags = %v, want empty", *update.Tags)
	}
}
