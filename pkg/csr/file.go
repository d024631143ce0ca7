package csr

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/matzehuels/csrconv/pkg/errors"
)

// File is an output file that only appears at its final path once Commit
// succeeds. Until then data goes to a uniquely named sibling so that readers
// never observe a partially written graph.
type File struct {
	f    *os.File
	path string
	tmp  string
	done bool
}

// Create opens a temporary file next to path, creating parent directories.
func Create(path string) (*File, error) {
	if err := errors.ValidatePath(path); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(errors.ErrCodeIO, err, "create output directory for %s", path)
	}
	tmp := path + ".tmp-" + uuid.NewString()
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeIO, err, "create %s", tmp)
	}
	return &File{f: f, path: path, tmp: tmp}, nil
}

// Write implements io.Writer.
func (f *File) Write(p []byte) (int, error) { return f.f.Write(p) }

// Path returns the final path.
func (f *File) Path() string { return f.path }

// TempPath returns the path data is currently written to.
func (f *File) TempPath() string { return f.tmp }

// Commit syncs the temporary file and renames it over the final path.
func (f *File) Commit() error {
	if f.done {
		return nil
	}
	f.done = true
	if err := f.f.Sync(); err != nil {
		f.f.Close()
		os.Remove(f.tmp)
		return errors.Wrap(errors.ErrCodeIO, err, "sync %s", f.tmp)
	}
	if err := f.f.Close(); err != nil {
		os.Remove(f.tmp)
		return errors.Wrap(errors.ErrCodeIO, err, "close %s", f.tmp)
	}
	if err := os.Rename(f.tmp, f.path); err != nil {
		os.Remove(f.tmp)
		return errors.Wrap(errors.ErrCodeIO, err, "rename %s", f.tmp)
	}
	return nil
}

// Abort discards the temporary file. It is a no-op after Commit, so it can be
// deferred unconditionally.
func (f *File) Abort() {
	if f.done {
		return
	}
	f.done = true
	f.f.Close()
	os.Remove(f.tmp)
}
