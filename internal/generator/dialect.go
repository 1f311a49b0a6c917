package generator

import (
	"fmt"
	"path/filepath"
)

// ModelFilename is the name of every generated model module
const ModelFilename = "_model.py"

// ModeReplace makes the generator overwrite the target file
const ModeReplace = "replace"

// Dialect selects the flavor of generated Python data model code
type Dialect int

const (
	// DialectCurrent generates pydantic v2 models at <dir>/_model.py
	DialectCurrent Dialect = iota
	// DialectLegacy generates pydantic v1 models at <dir>/v1/_model.py
	DialectLegacy
)

// Dialects lists all dialects in generation order
func Dialects() []Dialect {
	return []Dialect{DialectCurrent, DialectLegacy}
}

func (d Dialect) String() string {
	switch d {
	case DialectCurrent:
		return "current"
	case DialectLegacy:
		return "legacy"
	}
	return fmt.Sprintf("Dialect(%d)", int(d))
}

// OutputModelType is the base class the generator emits for d
func (d Dialect) OutputModelType() string {
	switch d {
	case DialectLegacy:
		return "pydantic.BaseModel"
	default:
		return "pydantic_v2.BaseModel"
	}
}

// OutputPath returns the model file for d below the package working dir
func (d Dialect) OutputPath(workdir string) string {
	if d == DialectLegacy {
		return filepath.Join(workdir, "v1", ModelFilename)
	}
	return filepath.Join(workdir, ModelFilename)
}

// Options are the generator options of a dialect
type Options struct {
	OutputModelType  string `json:"output_model_type"`
	DisableTimestamp bool   `json:"disable_timestamp"`
}

// Options returns the fixed option set of d. Timestamps are always
// disabled so that reruns produce identical files.
func (d Dialect) Options() Options {
	return Options{
		OutputModelType:  d.OutputModelType(),
		DisableTimestamp: true,
	}
}
