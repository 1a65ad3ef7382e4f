// Package settings holds the user-facing configuration that influences
// derived content. Each content provider declares which fields it cares
// about; the manager uses Changed to decide whether a settings transition
// needs to reach a given provider at all.
package settings

// Field names used by providers to declare relevance.
const (
	FieldPreviewLength     = "previewLength"
	FieldSkipFrontmatter   = "skipFrontmatter"
	FieldSkipCodeBlocks    = "skipCodeBlocks"
	FieldThumbnailSize     = "thumbnailSize"
	FieldThumbnailQuality  = "thumbnailQuality"
	FieldFrontmatterTags   = "frontmatterTags"
	FieldMetadataNameKey   = "metadataNameKey"
	FieldMetadataCreatedAt = "metadataCreatedKey"
)

// Settings is the full set of content-affecting knobs. A value is passed to
// every provider hook; providers read only the fields relevant to them.
type Settings struct {
	// Preview
	PreviewLength   int
	SkipFrontmatter bool
	SkipCodeBlocks  bool

	// Thumbnails
	ThumbnailSize    int
	ThumbnailQuality int

	// Tags
	FrontmatterTags bool

	// Metadata
	MetadataNameKey    string
	MetadataCreatedKey string
}

// Default returns the settings used when nothing is configured.
func Default() Settings {
	return Settings{
		PreviewLength:      300,
		SkipFrontmatter:    true,
		SkipCodeBlocks:     true,
		ThumbnailSize:      200,
		ThumbnailQuality:   80,
		FrontmatterTags:    true,
		MetadataNameKey:    "title",
		MetadataCreatedKey: "created",
	}
}

// Changed reports whether any of the named fields differ between old and new.
func Changed(old, new Settings, fields []string) bool {
	for _, f := range fields {
		switch f {
		case FieldPreviewLength:
			if old.PreviewLength != new.PreviewLength {
				return true
			}
		case FieldSkipFrontmatter:
			if old.SkipFrontmatter != new.SkipFrontmatter {
				return true
			}
		case FieldSkipCodeBlocks:
			if old.SkipCodeBlocks != new.SkipCodeBlocks {
				return true
			}
		case FieldThumbnailSize:
			if old.ThumbnailSize != new.ThumbnailSize {
				return true
			}
		case FieldThumbnailQuality:
			if old.ThumbnailQuality != new.ThumbnailQuality {
				return true
			}
		case FieldFrontmatterTags:
			if old.FrontmatterTags != new.FrontmatterTags {
				return true
			}
		case FieldMetadataNameKey:
			if old.MetadataNameKey != new.MetadataNameKey {
				return true
			}
		case FieldMetadataCreatedAt:
			if old.MetadataCreatedKey != new.MetadataCreatedKey {
				return true
			}
		}
	}
	return false
}
