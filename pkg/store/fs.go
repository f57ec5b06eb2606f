package store

import (
	"os"
	"path/filepath"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

// FS is the file hierarchy a Store reads and writes. Names are slash
// separated and relative to the hierarchy root.
type FS interface {
	// Exists reports whether name exists. A dangling link exists.
	Exists(name string) bool
	// List returns the base names of the children of dir.
	List(dir string) ([]string, error)
	// ReadAll returns the content of name.
	ReadAll(name string) ([]byte, error)
	// WriteAll replaces the content of name, creating parents as needed.
	WriteAll(name string, data []byte) error
	// ReadLink returns the target of the pointer entry name.
	ReadLink(name string) (string, error)
	// Symlink makes name a pointer entry to target, replacing name.
	Symlink(target, name string) error
}

var _ FS = OSFS{}

// OSFS is an FS backed by the operating system, rooted at Root.
type OSFS struct {
	Root string
}

func (f OSFS) abs(name string) string {
	return filepath.Join(f.Root, filepath.FromSlash(name))
}

func notFound(err error, name string) error {
	if os.IsNotExist(err) {
		return pkgerrors.Wrapf(ErrNotFound, "%s", name)
	}
	return err
}

func (f OSFS) Exists(name string) bool {
	_, err := os.Lstat(f.abs(name))
	return err == nil
}

func (f OSFS) List(dir string) ([]string, error) {
	entries, err := os.ReadDir(f.abs(dir))
	if err != nil {
		return nil, pkgerrors.Wrapf(notFound(err, dir), "failed to list %s", dir)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

func (f OSFS) ReadAll(name string) ([]byte, error) {
	b, err := os.ReadFile(f.abs(name))
	if err != nil {
		return nil, pkgerrors.Wrapf(notFound(err, name), "failed to read %s", name)
	}
	return b, nil
}

// WriteAll writes to a temporary file in the same directory and renames it
// over name.
func (f OSFS) WriteAll(name string, data []byte) error {
	p := f.abs(name)
	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return pkgerrors.Wrapf(err, "failed to create directory %s", dir)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(p)+".tmp-*")
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to create temporary file for %s", name)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return pkgerrors.Wrapf(err, "failed to write %s", name)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return pkgerrors.Wrapf(err, "failed to close %s", name)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		_ = os.Remove(tmpName)
		return pkgerrors.Wrapf(err, "failed to chmod %s", name)
	}
	if err := os.Rename(tmpName, p); err != nil {
		_ = os.Remove(tmpName)
		return pkgerrors.Wrapf(err, "failed to rename into %s", name)
	}

	return nil
}

// ReadLink returns the link target. Regular files are accepted as pointer
// entries too; their trimmed content is the target.
func (f OSFS) ReadLink(name string) (string, error) {
	p := f.abs(name)
	fi, err := os.Lstat(p)
	if err != nil {
		return "", pkgerrors.Wrapf(notFound(err, name), "failed to stat %s", name)
	}

	if fi.Mode()&os.ModeSymlink == 0 {
		b, err := os.ReadFile(p)
		if err != nil {
			return "", pkgerrors.Wrapf(err, "failed to read %s", name)
		}
		return strings.TrimSpace(string(b)), nil
	}

	target, err := os.Readlink(p)
	if err != nil {
		return "", pkgerrors.Wrapf(err, "failed to read link %s", name)
	}
	return target, nil
}

func (f OSFS) Symlink(target, name string) error {
	p := f.abs(name)
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return pkgerrors.Wrapf(err, "failed to create directory for %s", name)
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return pkgerrors.Wrapf(err, "failed to remove %s", name)
	}
	if err := os.Symlink(filepath.FromSlash(target), p); err != nil {
		return pkgerrors.Wrapf(err, "failed to link %s to %s", name, target)
	}
	return nil
}
