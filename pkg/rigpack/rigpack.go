// Package rigpack provides reading and writing of rig asset packs: zip
// containers holding skeleton and animation files in any of the supported
// formats.
package rigpack

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Faultbox/skelkit/pkg/anim"
	"github.com/Faultbox/skelkit/pkg/formats"
)

// Pack errors.
var (
	ErrFileNotFound         = errors.New("file not found in pack")
	ErrUnsupportedExtension = errors.New("unsupported asset extension")
)

// assetExtensions are the file types CreateFromDir collects.
var assetExtensions = map[string]bool{
	".skel": true,
	".rig":  true,
	".gltf": true,
	".glb":  true,
}

// Archive represents an opened rig pack.
type Archive struct {
	reader *zip.ReadCloser
	files  map[string]*zip.File
}

// Open opens a rig pack for reading.
func Open(path string) (*Archive, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("opening pack: %w", err)
	}

	archive := &Archive{
		reader: reader,
		files:  make(map[string]*zip.File),
	}
	for _, f := range reader.File {
		if f.FileInfo().IsDir() {
			continue
		}
		archive.files[normalizePath(f.Name)] = f
	}

	return archive, nil
}

// Close closes the pack.
func (a *Archive) Close() error {
	if a.reader != nil {
		return a.reader.Close()
	}
	return nil
}

// List returns all file paths in the pack, sorted.
func (a *Archive) List() []string {
	paths := make([]string, 0, len(a.files))
	for p := range a.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Contains reports whether the pack holds the given path.
func (a *Archive) Contains(path string) bool {
	_, ok := a.files[normalizePath(path)]
	return ok
}

// Read extracts a file from the pack.
func (a *Archive) Read(path string) ([]byte, error) {
	f, ok := a.files[normalizePath(path)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}

// ReadSkeleton extracts and decodes a skeleton asset, choosing the codec by
// extension. glTF assets must be self-contained (GLB or embedded buffers).
func (a *Archive) ReadSkeleton(path string) (*anim.Skeleton, error) {
	data, err := a.Read(path)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".skel":
		return formats.ParseSkel(data)
	case ".rig":
		return formats.ParseRig(data)
	case ".gltf", ".glb":
		return formats.ImportGLTFBytes(data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedExtension, path)
	}
}

// Create writes a pack holding the given files, keyed by path inside the
// pack.
func Create(packPath string, files map[string][]byte) error {
	out, err := os.Create(packPath)
	if err != nil {
		return fmt.Errorf("creating pack: %w", err)
	}

	w := zip.NewWriter(out)
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		f, err := w.Create(normalizePath(p))
		if err != nil {
			out.Close()
			return fmt.Errorf("adding %s: %w", p, err)
		}
		if _, err := f.Write(files[p]); err != nil {
			out.Close()
			return fmt.Errorf("writing %s: %w", p, err)
		}
	}

	if err := w.Close(); err != nil {
		out.Close()
		return fmt.Errorf("finalizing pack: %w", err)
	}
	return out.Close()
}

// CreateFromDir packs every supported asset file under dir, with paths
// relative to it.
func CreateFromDir(packPath, dir string) error {
	files := make(map[string][]byte)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !assetExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files[filepath.ToSlash(rel)] = data
		return nil
	})
	if err != nil {
		return fmt.Errorf("collecting assets: %w", err)
	}
	return Create(packPath, files)
}

// normalizePath makes pack paths comparable: forward slashes, no leading
// slash.
func normalizePath(path string) string {
	path = strings.ReplaceAll(path, "\\", "/")
	return strings.TrimPrefix(path, "/")
}
