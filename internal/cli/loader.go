package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/typedsql/internal/migrate"
	"github.com/roach88/typedsql/internal/runner"
	"github.com/roach88/typedsql/internal/schema"
	"github.com/roach88/typedsql/internal/schemafile"
	"github.com/roach88/typedsql/internal/sqlir"
)

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric      = "E001" // Generic/unknown error
	ErrCodeNotFound     = "E002" // Path not found
	ErrCodeLoadFailed   = "E003" // Snapshot or manifest could not be parsed
	ErrCodeUnsupported  = "E004" // Construct not expressible in the dialect
	ErrCodeExecFailed   = "E005" // Database rejected a command
	ErrCodeInconsistent = "E006" // Applied history diverges from the manifest
	ErrCodeUsage        = "E007" // Bad flags, arguments or configuration
)

// LoadError is a file that could not be loaded.
type LoadError struct {
	Code string
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// LoadSnapshot reads a schema snapshot file.
func LoadSnapshot(path string) ([]*schema.Table, error) {
	if err := exists(path); err != nil {
		return nil, err
	}
	tables, err := schemafile.Load(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Path: path, Err: err}
	}
	return tables, nil
}

// LoadManifest reads a migration manifest and derives its migrations.
func LoadManifest(path string) ([]migrate.Migration, error) {
	if err := exists(path); err != nil {
		return nil, err
	}
	ms, err := schemafile.LoadMigrations(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Path: path, Err: err}
	}
	return ms, nil
}

func exists(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return &LoadError{Code: ErrCodeNotFound, Path: path, Err: errors.New("file not found")}
	}
	if err != nil {
		return &LoadError{Code: ErrCodeNotFound, Path: path, Err: err}
	}
	if info.IsDir() {
		return &LoadError{Code: ErrCodeNotFound, Path: path, Err: errors.New("is a directory")}
	}
	return nil
}

// errorCode classifies err for structured output.
func errorCode(err error) string {
	var loadErr *LoadError
	var exitErr *ExitError
	switch {
	case errors.As(err, &loadErr):
		return loadErr.Code
	case sqlir.IsUnsupported(err):
		return ErrCodeUnsupported
	case migrate.IsConsistencyError(err):
		return ErrCodeInconsistent
	case runner.IsExecError(err):
		return ErrCodeExecFailed
	case errors.As(err, &exitErr) && exitErr.Code == ExitCommandError:
		return ErrCodeUsage
	}
	return ErrCodeGeneric
}
