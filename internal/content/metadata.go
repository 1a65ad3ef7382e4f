package content

import (
	"context"
	"path/filepath"
	"strings"

	"notebook-navigator/internal/settings"
	"notebook-navigator/internal/store"
	"notebook-navigator/internal/vault"
)

// MetadataProvider extracts display metadata from note frontmatter. The
// display name falls back to the file name when the configured key is
// missing.
type MetadataProvider struct {
	vault *vault.Vault
}

func NewMetadataProvider(v *vault.Vault) *MetadataProvider {
	return &MetadataProvider{vault: v}
}

func (p *MetadataProvider) Kind() string { return store.KindMetadata }

func (p *MetadataProvider) RelevantSettings() []string {
	return []string{
		settings.FieldMetadataNameKey,
		settings.FieldMetadataCreatedAt,
	}
}

func (p *MetadataProvider) NeedsProcessing(rec *store.Record, file *vault.File, s settings.Settings) bool {
	return stale(store.KindMetadata, rec, file)
}

func (p *MetadataProvider) ProcessFile(ctx context.Context, file *vault.File, rec *store.Record, s settings.Settings) (*store.ContentUpdate, bool, error) {
	note, err := readNote(ctx, p.vault, file)
	if err != nil {
		return nil, false, err
	}

	fm, _ := parseFrontmatter(note)
	meta := &store.NoteMetadata{
		Name:    frontmatterString(fm, s.MetadataNameKey),
		Created: frontmatterString(fm, s.MetadataCreatedKey),
	}
	if meta.Name == "" {
		meta.Name = strings.TrimSuffix(file.Name, filepath.Ext(file.Name))
	}
	return &store.ContentUpdate{Metadata: meta}, true, nil
}
