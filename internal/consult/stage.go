package consult

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/google/uuid"
)

// stager writes text to a fresh file, hands its path to load and removes the
// file again on every exit path.
type stager interface {
	stage(dir, text string, load func(path string) error) error
}

// stagerFor picks the staging strategy for goos.
func stagerFor(goos string) stager {
	if goos == "windows" {
		return namedStager{}
	}
	return openStager{}
}

func defaultStager() stager { return stagerFor(runtime.GOOS) }

// openStager keeps the handle open while the engine reads the file, then
// closes and unlinks it. Used where an open file can be read by path and
// unlinked while open.
type openStager struct{}

func (openStager) stage(dir, text string, load func(string) error) (err error) {
	f, err := os.CreateTemp(dir, "kb-*.pl")
	if err != nil {
		return &ResourceError{Op: "create", Path: dir, Err: err}
	}
	path := f.Name()
	closed := false
	defer func() {
		if !closed {
			if cerr := f.Close(); cerr != nil {
				err = errors.Join(err, &ResourceError{Op: "close", Path: path, Err: cerr})
			}
		}
		if rerr := os.Remove(path); rerr != nil {
			err = errors.Join(err, &ResourceError{Op: "remove", Path: path, Err: rerr})
		}
	}()

	if _, err := f.WriteString(text); err != nil {
		return &ResourceError{Op: "write", Path: path, Err: err}
	}
	if err := f.Sync(); err != nil {
		return &ResourceError{Op: "sync", Path: path, Err: err}
	}

	loadErr := load(path)

	closed = true
	if cerr := f.Close(); cerr != nil {
		return errors.Join(loadErr, &ResourceError{Op: "close", Path: path, Err: cerr})
	}
	return loadErr
}

// namedStager writes a randomly named file, closes it before the engine
// opens it and deletes it explicitly afterwards. Used where open handles
// block other readers or deletion.
type namedStager struct{}

func (namedStager) stage(dir, text string, load func(string) error) (err error) {
	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, "kb-"+strings.ReplaceAll(uuid.NewString(), "-", "")+".pl")

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return &ResourceError{Op: "create", Path: path, Err: err}
	}
	defer func() {
		if rerr := os.Remove(path); rerr != nil {
			err = errors.Join(err, &ResourceError{Op: "remove", Path: path, Err: rerr})
		}
	}()

	_, werr := f.WriteString(text)
	if werr == nil {
		werr = f.Sync()
	}
	if cerr := f.Close(); werr == nil && cerr != nil {
		return &ResourceError{Op: "close", Path: path, Err: cerr}
	}
	if werr != nil {
		return &ResourceError{Op: "write", Path: path, Err: werr}
	}

	return load(path)
}
