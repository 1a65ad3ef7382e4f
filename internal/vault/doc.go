// Package vault provides access to the note collection on disk: resolving
// stable path identifiers to live file handles, scanning the tree in
// parallel, and watching it for changes.
package vault
