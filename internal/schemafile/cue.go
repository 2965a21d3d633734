package schemafile

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/ast"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/format"
	"cuelang.org/go/cue/token"
)

// definitions constrains snapshot and manifest files written in CUE.
const definitions = `
#Column: {
	member:          string & != ""
	name?:           string
	type:            =~"^[a-z0-9]+[?]?$"
	primary_key?:    bool
	auto_increment?: bool
	length?:         int & >=0
	nvarchar?:       bool
	precision?:      int & >=0
	scale?:          int & >=0
}

#ForeignKey: {
	name:    string & != ""
	columns: [...string]
	references:        string & != ""
	reference_columns: [...string]
}

#Index: {
	name:    string & != ""
	columns: [...string]
	unique?: bool
}

#Table: {
	id?:           string
	name:          string & != ""
	columns:       [...#Column]
	foreign_keys?: [...#ForeignKey]
	indices?:      [...#Index]
}

#Snapshot: tables: [...#Table]

#Manifest: migrations: [...{
	name:     string & != ""
	snapshot: string & != ""
}]
`

// FileError is a CUE evaluation error with its source position.
type FileError struct {
	Pos     token.Pos
	Message string
}

func (e *FileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	return e.Message
}

// formatCUEError keeps the first error of a CUE error list and its position.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &FileError{Pos: positions[0], Message: first.Error()}
	}
	return err
}

// decodeCUE compiles data, unifies it with the named definition and decodes
// the concrete result into v.
func decodeCUE(filename string, data []byte, def string, v any) error {
	ctx := cuecontext.New()
	defs := ctx.CompileString(definitions)
	if err := defs.Err(); err != nil {
		return fmt.Errorf("definitions: %w", err)
	}

	val := ctx.CompileBytes(data, cue.Filename(filename))
	if err := val.Err(); err != nil {
		return formatCUEError(err)
	}
	val = defs.LookupPath(cue.ParsePath(def)).Unify(val)
	if err := val.Validate(cue.Concrete(true)); err != nil {
		return formatCUEError(err)
	}
	if err := val.Decode(v); err != nil {
		return formatCUEError(err)
	}
	return nil
}

// encodeCUE renders v as a CUE file with top-level fields.
func encodeCUE(v any) ([]byte, error) {
	ctx := cuecontext.New()
	val := ctx.Encode(v)
	if err := val.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	node := val.Syntax(cue.Final(), cue.Concrete(true))
	if s, ok := node.(*ast.StructLit); ok {
		node = &ast.File{Decls: s.Elts}
	}
	out, err := format.Node(node, format.Simplify())
	if err != nil {
		return nil, fmt.Errorf("failed to format CUE: %w", err)
	}
	return out, nil
}
