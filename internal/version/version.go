// Package version composes the post-release version strings used to tag
// generated Python packages.
package version

import (
	"fmt"
	"strconv"
	"strings"
)

// Current is the version of the generator tool itself. It is encoded into
// every composed tag, so bump it whenever generated output may change.
const Current = "0.1.1"

// Tool is a three component tool version
type Tool struct {
	Major int
	Minor int
	Patch int
}

// ParseTool parses a "major.minor.patch" version. Each component must be
// a non-negative integer that fits into three digits.
func ParseTool(s string) (Tool, error) {
	parts := strings.Split(strings.TrimPrefix(s, "v"), ".")
	if len(parts) != 3 {
		return Tool{}, fmt.Errorf("tool version %q: expected major.minor.patch", s)
	}

	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Tool{}, fmt.Errorf("tool version %q: component %q is not a number", s, p)
		}
		if n < 0 || n > 999 {
			return Tool{}, fmt.Errorf("tool version %q: component %d out of range [0, 999]", s, n)
		}
		nums[i] = n
	}

	return Tool{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

// MustParseTool is like ParseTool but panics on error
func MustParseTool(s string) Tool {
	t, err := ParseTool(s)
	if err != nil {
		panic(err)
	}
	return t
}

func (t Tool) String() string {
	return fmt.Sprintf("%d.%d.%d", t.Major, t.Minor, t.Patch)
}

// Compose builds the tag for a generated package:
//
//	<pkgVersion>.post<major><minor><patch><run>
//
// with every numeric field zero padded to three digits, e.g.
// Compose("v0.53.2", 0.1.1, 0) == "v0.53.2.post000001001000".
func Compose(pkgVersion string, tool Tool, run int) string {
	return fmt.Sprintf("%s.post%03d%03d%03d%03d", pkgVersion, tool.Major, tool.Minor, tool.Patch, run)
}
