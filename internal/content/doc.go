// Package content implements the per-kind derived-content providers
// (preview text, thumbnail, tags, frontmatter metadata) and the manager
// that fans vault changes out to one scheduler per kind.
package content
