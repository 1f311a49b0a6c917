package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// extractZip unpacks every entry of the archive at src into dest and
// returns the top level names it created. Entries that would land outside
// dest are rejected. Symlinks are skipped.
func extractZip(src, dest string) ([]string, error) {
	r, err := zip.OpenReader(src)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	seen := make(map[string]bool)
	var top []string

	for _, f := range r.File {
		target := filepath.Join(dest, filepath.FromSlash(f.Name))
		if !within(dest, target) {
			return nil, fmt.Errorf("entry %q escapes the extraction directory", f.Name)
		}

		if first := strings.SplitN(filepath.ToSlash(f.Name), "/", 2)[0]; first != "" && !seen[first] {
			seen[first] = true
			top = append(top, first)
		}

		mode := f.Mode()
		switch {
		case mode&os.ModeSymlink != 0:
			continue
		case f.FileInfo().IsDir():
			if err := os.MkdirAll(target, 0755); err != nil {
				return nil, err
			}
			continue
		}

		if err := extractFile(f, target); err != nil {
			return nil, fmt.Errorf("entry %q: %w", f.Name, err)
		}
	}

	return top, nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}

	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	perm := f.Mode().Perm()
	if perm == 0 {
		perm = 0644
	}

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// within reports whether path lies strictly below dir
func within(dir, path string) bool {
	return strings.HasPrefix(filepath.Clean(path), filepath.Clean(dir)+string(os.PathSeparator))
}
