package store

// Content kinds persisted for each note.
const (
	KindPreview   = "preview"
	KindThumbnail = "thumbnail"
	KindTags      = "tags"
	KindMetadata  = "metadata"
)

// Kinds lists every content kind in a stable order.
func Kinds() []string {
	return []string{KindPreview, KindThumbnail, KindTags, KindMetadata}
}

// NoteMetadata holds frontmatter-derived note attributes.
type NoteMetadata struct {
	Name    string `json:"name,omitempty"`
	Created string `json:"created,omitempty"`
}

// Record is a note's derived content row. A zero mtime means the kind has
// never been computed for this note.
type Record struct {
	Path string `json:"path"`

	Preview      string `json:"preview,omitempty"`
	PreviewMTime int64  `json:"previewMtime"`

	Thumbnail      string `json:"thumbnail,omitempty"`
	ThumbnailMTime int64  `json:"thumbnailMtime"`

	Tags      []string `json:"tags,omitempty"`
	TagsMTime int64    `json:"tagsMtime"`

	Metadata      *NoteMetadata `json:"metadata,omitempty"`
	MetadataMTime int64         `json:"metadataMtime"`
}

// KindMTime returns the processed-source mtime recorded for a kind.
func (r *Record) KindMTime(kind string) int64 {
	if r == nil {
		return 0
	}
	switch kind {
	case KindPreview:
		return r.PreviewMTime
	case KindThumbnail:
		return r.ThumbnailMTime
	case KindTags:
		return r.TagsMTime
	case KindMetadata:
		return r.MetadataMTime
	}
	return 0
}

// ContentUpdate is a sparse write for one note and one kind. Nil content
// fields mean "unchanged"; only the field a processing attempt actually
// computed is set.
type ContentUpdate struct {
	Path string
	Kind string

	Preview   *string
	Thumbnail *string
	Tags      *[]string
	Metadata  *NoteMetadata

	// ProcessedMTime is the source file mtime observed when the content was
	// computed. It becomes the kind's provenance mtime on a successful
	// write, so a source that changed mid-computation is detected as stale
	// on the next needs-processing check.
	ProcessedMTime int64

	// ExpectedMTime is the kind mtime the scheduler saw before computing.
	// The write is skipped when the stored value has moved on, so a stale
	// attempt never overwrites fresher content.
	ExpectedMTime int64
}
