// Package storage accepts uploaded photos and keeps them under one upload
// directory.
//
// Only the bare stored filename ever leaves this package. The HTTP layer
// serves the directory read-only at /uploads/, and the database stores the
// filename next to the plant or journal entry it belongs to.
package storage

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/sakif/houseplant-tracker/internal/apperror"
)

// allowedExtensions is compared case-insensitively, without the dot.
var allowedExtensions = map[string]bool{
	"jpg":  true,
	"jpeg": true,
	"png":  true,
	"gif":  true,
}

// timestampLayout prefixes every stored file. The microsecond part is
// appended separately so two uploads in the same second do not collide.
const timestampLayout = "20060102150405"

// Upload is a photo received from a client, before it is stored.
type Upload struct {
	Filename string
	Content  io.Reader
}

// Intake writes uploads into Dir.
type Intake struct {
	dir string
	now func() time.Time
}

// NewIntake returns an Intake rooted at dir, creating the directory if it
// does not exist.
func NewIntake(dir string) (*Intake, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: creating upload dir %s: %w", dir, err)
	}
	return &Intake{dir: dir, now: time.Now}, nil
}

// Dir is the upload root.
func (in *Intake) Dir() string {
	return in.dir
}

// FileSystem serves the stored photos for http.FileServer. Directories and
// in-flight temporary files open as missing, so the upload directory is
// never listed.
func (in *Intake) FileSystem() http.FileSystem {
	return photoFS{root: http.Dir(in.dir)}
}

type photoFS struct {
	root http.FileSystem
}

func (fs photoFS) Open(name string) (http.File, error) {
	if strings.HasPrefix(path.Base(name), ".") {
		return nil, os.ErrNotExist
	}
	f, err := fs.root.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, os.ErrNotExist
	}
	return f, nil
}

// AllowedExtension reports whether name ends in jpg, jpeg, png or gif, in
// any case.
func AllowedExtension(name string) bool {
	ext := strings.TrimPrefix(filepath.Ext(name), ".")
	return allowedExtensions[strings.ToLower(ext)]
}

// Store validates the extension of originalName, then writes r to
// <UTC yyyymmddHHMMSS>_<microseconds>_<sanitized name> and returns that name.
//
// The file is written to a temporary name and renamed into place, so a
// reader never sees a half-written photo and a failed copy leaves nothing
// behind.
func (in *Intake) Store(originalName string, r io.Reader) (string, error) {
	if !AllowedExtension(originalName) {
		return "", apperror.UnsupportedType(originalName)
	}

	safe := SecureFilename(originalName)
	if !AllowedExtension(safe) {
		// Sanitizing can eat the whole stem of a non-ASCII name.
		safe = "photo." + strings.ToLower(strings.TrimPrefix(filepath.Ext(originalName), "."))
	}

	now := in.now().UTC()
	name := fmt.Sprintf("%s_%06d_%s", now.Format(timestampLayout), now.Nanosecond()/1000, safe)

	tmp, err := os.CreateTemp(in.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("storage: creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("storage: writing %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("storage: closing %s: %w", name, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("storage: chmod %s: %w", name, err)
	}
	if err := os.Rename(tmpName, filepath.Join(in.dir, name)); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("storage: moving %s into place: %w", name, err)
	}

	return name, nil
}

// Remove deletes a stored file. Removing a file that is already gone is not
// an error. Only the base name is used, so a crafted name cannot reach
// outside the upload root.
func (in *Intake) Remove(filename string) error {
	if filename == "" {
		return nil
	}
	err := os.Remove(filepath.Join(in.dir, filepath.Base(filename)))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: removing %s: %w", filename, err)
	}
	return nil
}

// SecureFilename reduces name to a string that is safe to use as a single
// path component:
//
//	"My Plant.JPG"          -> "My_Plant.JPG"
//	"../../etc/passwd.png"  -> "etc_passwd.png"
//	"Café Fern.png"         -> "Cafe_Fern.png"
//
// Accents are decomposed and dropped, path separators become spaces, runs of
// whitespace become one underscore, anything outside [A-Za-z0-9_.-] is
// removed, and leading or trailing dots and underscores are trimmed.
func SecureFilename(name string) string {
	name = norm.NFKD.String(name)
	name = strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		if r == '/' || r == '\\' {
			return ' '
		}
		return r
	}, name)

	name = strings.Join(strings.Fields(name), "_")

	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '_' || r == '.' || r == '-':
			return r
		}
		return -1
	}, name)

	return strings.Trim(name, "._")
}
