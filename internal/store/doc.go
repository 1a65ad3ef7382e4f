// Package store persists derived note content (previews, thumbnails, tags,
// frontmatter metadata) in sqlite, fronted by an in-memory cache so the
// schedulers get synchronous point lookups and a single batched write per
// processing cycle.
package store
