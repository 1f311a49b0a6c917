// Package pkgref parses schema package references of the form name@version
// and derives the local Python project layout for a package.
package pkgref

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode"
)

// ErrInvalidReference is returned when a package reference cannot be parsed
var ErrInvalidReference = errors.New("invalid package reference")

const (
	// namespaceRoot is dropped from package names when naming Python projects
	namespaceRoot = "world."

	pythonSuffix = "-python"
)

// Reference identifies a versioned schema package, e.g. world.opensemantic.core@v0.53.2
type Reference struct {
	Name    string
	Version string
}

// Parse splits a reference on "@". A reference without a version is
// floating and must be resolved before use.
func Parse(s string) (Reference, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, "@")
	if len(parts) > 2 {
		return Reference{}, fmt.Errorf("%w: %q has more than one '@'", ErrInvalidReference, s)
	}

	ref := Reference{Name: parts[0]}
	if ref.Name == "" {
		return Reference{}, fmt.Errorf("%w: %q has an empty package name", ErrInvalidReference, s)
	}
	if strings.ContainsAny(ref.Name, `/\ `) || hasControl(ref.Name) || strings.HasPrefix(ref.Name, "-") {
		return Reference{}, fmt.Errorf("%w: %q is not a dotted package name", ErrInvalidReference, s)
	}

	if len(parts) == 2 {
		ref.Version = parts[1]
		if err := ValidateVersion(ref.Version); err != nil {
			return Reference{}, fmt.Errorf("%w: %q: %v", ErrInvalidReference, s, err)
		}
	}

	return ref, nil
}

// ValidateVersion checks that version is usable as a single path element,
// URL path segment and git tag name. Resolved tags go through it as well.
func ValidateVersion(version string) error {
	switch {
	case version == "":
		return errors.New("empty version")
	case strings.Contains(version, ".."):
		return fmt.Errorf("version %q contains '..'", version)
	case strings.HasPrefix(version, "-"):
		return fmt.Errorf("version %q starts with '-'", version)
	case strings.ContainsAny(version, `/\`):
		return fmt.Errorf("version %q contains a path separator", version)
	}
	for _, r := range version {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return fmt.Errorf("version %q contains whitespace or control characters", version)
		}
	}
	return nil
}

func hasControl(s string) bool {
	return strings.IndexFunc(s, unicode.IsControl) >= 0
}

// Floating reports whether the reference still needs a version
func (r Reference) Floating() bool {
	return r.Version == ""
}

// WithVersion returns a copy of r pinned to version
func (r Reference) WithVersion(version string) Reference {
	r.Version = version
	return r
}

func (r Reference) String() string {
	if r.Floating() {
		return r.Name
	}
	return r.Name + "@" + r.Version
}

// PythonPackageName returns the Python project name, e.g. opensemantic.core-python
func (r Reference) PythonPackageName() string {
	return strings.ReplaceAll(r.Name, namespaceRoot, "") + pythonSuffix
}

// RepoDir returns the Python project directory under root. This is the
// directory that is committed and tagged.
func (r Reference) RepoDir(root string) string {
	return filepath.Join(root, r.PythonPackageName())
}

// WorkingDir returns the directory the generated model code is written to:
// every dot separated segment of the shortened name becomes one path level
// below <root>/<python package>/src.
func (r Reference) WorkingDir(root string) string {
	segments := []string{r.RepoDir(root), "src"}
	segments = append(segments, strings.Split(strings.TrimSuffix(r.PythonPackageName(), pythonSuffix), ".")...)
	return filepath.Join(segments...)
}

// ArchiveRoot returns the directory name a tag archive extracts to:
// <name>-<version without a leading "v">.
func (r Reference) ArchiveRoot() string {
	return r.Name + "-" + strings.TrimPrefix(r.Version, "v")
}
