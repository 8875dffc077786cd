package library

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/kozaktomas/photo-dedupe/internal/fingerprint"
	_ "golang.org/x/image/webp"
)

// ErrOutsideRoot is returned for identities that would resolve outside the library root.
var ErrOutsideRoot = errors.New("identity resolves outside library root")

// Library is a directory tree of images.
type Library struct {
	root       string
	extensions map[string]struct{}
	skip       map[string]struct{} // absolute paths never reported by Scan
}

// New creates a Library rooted at root. Extensions are matched
// case-insensitively and may be given with or without the leading dot.
func New(root string, extensions []string) (*Library, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving library root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("library root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("library root %s is not a directory", abs)
	}

	exts := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts[ext] = struct{}{}
	}

	return &Library{
		root:       abs,
		extensions: exts,
		skip:       make(map[string]struct{}),
	}, nil
}

// Root returns the absolute library root.
func (l *Library) Root() string {
	return l.root
}

// Skip excludes a file (for example the fingerprint cache) from scans.
func (l *Library) Skip(p string) {
	if abs, err := filepath.Abs(p); err == nil {
		l.skip[abs] = struct{}{}
	}
}

// Path resolves an identity to an absolute file path.
func (l *Library) Path(id Identity) (string, error) {
	rel := path.Clean(string(id))
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") || path.IsAbs(rel) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, id)
	}
	return filepath.Join(l.root, filepath.FromSlash(rel)), nil
}

// IsImage reports whether the file name has a recognised image extension.
func (l *Library) IsImage(name string) bool {
	_, ok := l.extensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

// Scan walks the library in lexical order and returns the identities of all
// images. Hidden directories are not descended into.
func (l *Library) Scan(ctx context.Context) ([]Identity, error) {
	var ids []Identity
	err := filepath.WalkDir(l.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if p != l.root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !l.IsImage(d.Name()) {
			return nil
		}
		if _, skipped := l.skip[p]; skipped {
			return nil
		}
		id, err := Rel(l.root, p)
		if err != nil {
			return err
		}
		ids = append(ids, id)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning library %s: %w", l.root, err)
	}
	return ids, nil
}

// Decode opens and decodes the image behind id, applying EXIF orientation.
// Every failure is reported as a *fingerprint.DecodeError.
func (l *Library) Decode(ctx context.Context, id Identity) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := l.Path(id)
	if err != nil {
		return nil, &fingerprint.DecodeError{Path: id.String(), Err: err}
	}
	img, err := imaging.Open(p, imaging.AutoOrientation(true))
	if err != nil {
		return nil, &fingerprint.DecodeError{Path: id.String(), Err: err}
	}
	if img.Bounds().Empty() {
		return nil, &fingerprint.DecodeError{Path: id.String(), Err: fingerprint.ErrEmptyImage}
	}
	return img, nil
}

// Open returns the raw file behind id.
func (l *Library) Open(id Identity) (*os.File, error) {
	p, err := l.Path(id)
	if err != nil {
		return nil, err
	}
	return os.Open(p) //nolint:gosec // path is confined to the library root
}

// Delete removes the image and its sidecars: siblings named after the
// image's file name plus a further extension, such as IMG_0001.JPG.xmp.
// Siblings that are images themselves are never sidecars. It returns the
// removed paths.
func (l *Library) Delete(id Identity) ([]string, error) {
	p, err := l.Path(id)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(p); err != nil {
		return nil, fmt.Errorf("deleting %s: %w", id, err)
	}

	dir, name := filepath.Split(p)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}

	var removed []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if entry.Name() != name && !l.isSidecarOf(entry.Name(), name) {
			continue
		}
		target := filepath.Join(dir, entry.Name())
		if err := os.Remove(target); err != nil {
			return removed, fmt.Errorf("removing %s: %w", target, err)
		}
		removed = append(removed, target)
	}
	return removed, nil
}

func (l *Library) isSidecarOf(candidate, name string) bool {
	suffix, ok := strings.CutPrefix(candidate, name+".")
	return ok && suffix != "" && !l.IsImage(candidate)
}
