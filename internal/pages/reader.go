package pages

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"
)

// ManifestFile is the page package manifest at the package root
const ManifestFile = "packages.json"

const mainSlot = "main"

// Reader turns an extracted page package directory into a page set
type Reader interface {
	ReadPackage(dir string) (Set, error)
}

// ReaderFunc adapts a function to the Reader interface
type ReaderFunc func(dir string) (Set, error)

// ReadPackage calls f(dir)
func (f ReaderFunc) ReadPackage(dir string) (Set, error) {
	return f(dir)
}

// manifest is the on-disk layout of packages.json
type manifest struct {
	Packages map[string]struct {
		Name    string         `json:"name"`
		Version string         `json:"version"`
		Pages   []manifestPage `json:"pages"`
	} `json:"packages"`
}

type manifestPage struct {
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
	URLPath   string `json:"urlPath"`
	Slots     map[string]struct {
		ContentModel string `json:"content_model"`
	} `json:"slots"`
}

// Option configures a PackageReader
type Option func(*PackageReader)

// WithFS reads from fsys instead of the OS filesystem. Directories passed to
// ReadPackage are then interpreted relative to fsys.
func WithFS(fsys fs.FS) Option {
	return func(r *PackageReader) {
		r.fsys = fsys
	}
}

// PackageReader reads page packages described by a packages.json manifest.
// The main slot of a page is stored at its urlPath, every other slot next to
// it as <urlPath without extension>.slot_<name>.<json|wikitext>.
type PackageReader struct {
	fsys fs.FS
}

// NewPackageReader creates a reader
func NewPackageReader(opts ...Option) *PackageReader {
	r := &PackageReader{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ReadPackage reads every page listed in the manifest below dir
func (r *PackageReader) ReadPackage(dir string) (Set, error) {
	fsys, root := r.fsys, dir
	if fsys == nil {
		fsys, root = os.DirFS(dir), "."
	}

	data, err := fs.ReadFile(fsys, path.Join(root, ManifestFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("page package %s: no %s found: %w", dir, ManifestFile, err)
		}
		return nil, fmt.Errorf("page package %s: %w", dir, err)
	}

	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("page package %s: decoding %s: %w", dir, ManifestFile, err)
	}

	var all []*Page
	for pkgName, pkg := range m.Packages {
		for _, mp := range pkg.Pages {
			page, err := readPage(fsys, root, mp)
			if err != nil {
				return nil, fmt.Errorf("page package %s: package %s: %w", dir, pkgName, err)
			}
			all = append(all, page)
		}
	}

	return NewSet(all), nil
}

func readPage(fsys fs.FS, root string, mp manifestPage) (*Page, error) {
	if mp.Namespace == "" || mp.Name == "" {
		return nil, fmt.Errorf("page entry %q: namespace and name are required", mp.URLPath)
	}

	page := &Page{
		Title:     mp.Namespace + ":" + mp.Name,
		Namespace: mp.Namespace,
		Name:      mp.Name,
		Slots:     make(map[string]Slot),
	}

	urlPath := mp.URLPath
	if urlPath == "" {
		urlPath = mp.Namespace + "/" + mp.Name + ".wikitext"
	}
	base := strings.TrimSuffix(urlPath, path.Ext(urlPath))

	for name, slot := range mp.Slots {
		p := urlPath
		if name != mainSlot {
			ext := ".wikitext"
			if slot.ContentModel == ContentModelJSON {
				ext = ".json"
			}
			p = base + ".slot_" + name + ext
		}

		content, err := fs.ReadFile(fsys, path.Join(root, p))
		if err != nil {
			return nil, fmt.Errorf("page %s: reading slot %s: %w", page.Title, name, err)
		}
		page.Slots[name] = Slot{ContentModel: slot.ContentModel, Content: content}
	}

	return page, nil
}
