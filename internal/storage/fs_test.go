package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempVault(t *testing.T) (string, *FS) {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	require.NoError(t, err)
	return dir, fs
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func TestRead(t *testing.T) {
	dir, s := tempVault(t)
	writeFile(t, dir, "note.md", "# Hello\nWorld\n")
	got, err := s.Read(context.Background(), "note.md")
	require.NoError(t, err)
	assert.Equal(t, "# Hello\nWorld\n", string(got))
}

func TestReadMissing(t *testing.T) {
	_, s := tempVault(t)
	_, err := s.Read(context.Background(), "nope.md")
	assert.Error(t, err)
}

func TestList(t *testing.T) {
	dir, s := tempVault(t)
	writeFile(t, dir, "a.md", "a")
	writeFile(t, dir, "sub/b.md", "b")
	writeFile(t, dir, "c.txt", "not a note")
	writeFile(t, dir, ".obsidian/workspace.md", "hidden")

	metas, err := s.List(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, metas, 2)

	assert.Equal(t, "a.md", metas[0].Path, "sorted by path")
	assert.Equal(t, "sub/b.md", metas[1].Path, "sorted by path")
	assert.Equal(t, Checksum([]byte("a")), metas[0].Checksum)
}

func TestListCancelled(t *testing.T) {
	dir, s := tempVault(t)
	writeFile(t, dir, "a.md", "a")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.List(ctx, "")
	assert.ErrorIs(t, err, context.Canceled)
	_, err = s.Read(ctx, "a.md")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPathTraversal(t *testing.T) {
	_, s := tempVault(t)
	_, err := s.Read(context.Background(), "../etc/passwd")
	assert.Error(t, err, "path traversal")
	_, err = s.Read(context.Background(), "/etc/passwd")
	assert.Error(t, err, "absolute path")
}

func TestChecksumStable(t *testing.T) {
	assert.Equal(t, Checksum([]byte("x")), Checksum([]byte("x")))
	assert.NotEqual(t, Checksum([]byte("x")), Checksum([]byte("y")))
}
