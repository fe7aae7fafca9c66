// Package storage defines the rooted file store used for rendered thumbnails
// and for media fetched into the inbox.
package storage

import "time"

// Entry describes one stored file.
type Entry struct {
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// Provider is the interface for rooted file operations. Every path is
// relative to the store root.
type Provider interface {
	// Abs returns the absolute location of path.
	Abs(path string) (string, error)
	// Stat describes the file at path.
	Stat(path string) (Entry, error)
	// List returns every regular file under dir.
	List(dir string) ([]Entry, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
}
