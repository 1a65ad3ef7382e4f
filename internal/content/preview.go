package content

import (
	"context"

	"notebook-navigator/internal/settings"
	"notebook-navigator/internal/store"
	"notebook-navigator/internal/vault"
)

// PreviewProvider extracts a note's leading plain text.
type PreviewProvider struct {
	vault *vault.Vault
}

func NewPreviewProvider(v *vault.Vault) *PreviewProvider {
	return &PreviewProvider{vault: v}
}

func (p *PreviewProvider) Kind() string { return store.KindPreview }

func (p *PreviewProvider) RelevantSettings() []string {
	return []string{
		settings.FieldPreviewLength,
		settings.FieldSkipFrontmatter,
		settings.FieldSkipCodeBlocks,
	}
}

func (p *PreviewProvider) NeedsProcessing(rec *store.Record, file *vault.File, s settings.Settings) bool {
	return stale(store.KindPreview, rec, file)
}

func (p *PreviewProvider) ProcessFile(ctx context.Context, file *vault.File, rec *store.Record, s settings.Settings) (*store.ContentUpdate, bool, error) {
	note, err := readNote(ctx, p.vault, file)
	if err != nil {
		return nil, false, err
	}

	text := note
	if s.SkipFrontmatter {
		_, text = splitFrontmatter(note)
	}
	preview := previewText(text, s.PreviewLength, s.SkipCodeBlocks)
	return &store.ContentUpdate{Preview: &preview}, true, nil
}
