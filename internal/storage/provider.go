// Package storage defines the read-only vault file-system abstraction the
// indexer ingests notes from.
package storage

import (
	"context"
	"time"
)

// FileMeta describes one Markdown file in the vault.
type FileMeta struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Provider is the interface for vault file operations. Notes are owned by
// the user's editor; the indexer only reads them.
type Provider interface {
	// List returns metadata for every .md file under dir (relative to vault
	// root). The walk stops when ctx is cancelled.
	List(ctx context.Context, dir string) ([]FileMeta, error)
	// Read returns the raw bytes of the file at path (relative to vault root).
	Read(ctx context.Context, path string) ([]byte, error)
}
