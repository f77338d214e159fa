package pipeline

import (
	"context"
	"os"
	"path/filepath"
)

// Gate is the storage permission check consulted before every run.
// A false result is a hard stop.
type Gate interface {
	EnsureStoragePermission(ctx context.Context) (bool, error)
}

// DirGate grants permission when the data directory is writable, probed
// with a throwaway file.
type DirGate struct {
	Dir string
}

func (g DirGate) EnsureStoragePermission(context.Context) (bool, error) {
	if err := os.MkdirAll(g.Dir, 0o755); err != nil {
		return false, nil
	}
	probe := filepath.Join(g.Dir, ".perm-probe")
	f, err := os.Create(probe)
	if err != nil {
		return false, nil
	}
	f.Close()
	os.Remove(probe)
	return true, nil
}
