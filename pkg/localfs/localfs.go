// Package localfs tracks the destination directory during a mirror run.
//
// A Dir models the "entered" directory with explicit path state instead of
// the process working directory, so concurrent runs (or anything else in the
// process touching the working directory) can't skew the traversal.
package localfs

import (
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/portmirror/portmirror/pkg/errors"
)

// Dir is the local filesystem collaborator for a single mirror run. It's
// rooted at the destination directory and moves down and up the tree in
// lockstep with the traversal.
type Dir struct {
	fs      afero.Fs
	root    string
	current string
}

// New creates a Dir rooted at root, creating the root directory if needed.
func New(fs afero.Fs, root string) (*Dir, error) {
	root = filepath.Clean(root)
	if err := fs.MkdirAll(root, 0755); err != nil {
		return nil, errors.WithContext(err, "create destination root")
	}
	return &Dir{fs: fs, root: root, current: root}, nil
}

// MkdirIfAbsent creates the directory name inside the current directory.
// A pre-existing directory is success, not failure. The returned bool
// reports whether the directory was actually created.
func (d *Dir) MkdirIfAbsent(name string) (bool, error) {
	err := d.fs.Mkdir(filepath.Join(d.current, name), 0755)
	if err != nil {
		if os.IsExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Enter moves the current directory one level down into name. The directory
// must already exist.
func (d *Dir) Enter(name string) error {
	path := filepath.Join(d.current, name)
	fi, err := d.fs.Stat(path)
	if err != nil {
		return err
	}
	if !fi.IsDir() {
		return errors.New("not a directory")
	}

	d.current = path
	return nil
}

// Leave moves the current directory one level up. Leaving the root is an
// invariant violation: Enter and Leave calls must be paired.
func (d *Dir) Leave() error {
	if d.current == d.root {
		return errors.New("already at destination root")
	}
	d.current = filepath.Dir(d.current)
	return nil
}

// Stat looks up name in the current directory. A missing file is reported
// through exists, not an error.
func (d *Dir) Stat(name string) (exists bool, size uint64, err error) {
	fi, err := d.fs.Stat(filepath.Join(d.current, name))
	if err != nil {
		if os.IsNotExist(err) {
			return false, 0, nil
		}
		return false, 0, err
	}
	return true, uint64(fi.Size()), nil
}

// Resolve returns the full local path for name in the current directory.
// It's used as the fetch destination for file transfers.
func (d *Dir) Resolve(name string) string {
	return filepath.Join(d.current, name)
}

// Path returns the current directory. It's diagnostic only: traversal logic
// must rely on its own path bookkeeping rather than querying this.
func (d *Dir) Path() string {
	return d.current
}

// Root returns the destination root the Dir was created with.
func (d *Dir) Root() string {
	return d.root
}
