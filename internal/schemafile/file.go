package schemafile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/typedsql/internal/migrate"
	"github.com/roach88/typedsql/internal/schema"
)

// Format is a file encoding.
type Format string

const (
	YAML Format = "yaml"
	CUE  Format = "cue"
)

// FormatOf picks the format from the file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAML, nil
	case ".cue":
		return CUE, nil
	}
	return "", fmt.Errorf("unknown schema file extension %q (want .yaml, .yml or .cue)", filepath.Ext(path))
}

// Decode parses a snapshot document.
func Decode(f Format, filename string, data []byte) ([]*schema.Table, error) {
	var s Snapshot
	if err := decode(f, filename, data, "#Snapshot", &s); err != nil {
		return nil, err
	}
	return s.Schema()
}

// Encode renders tables as a snapshot document.
func Encode(f Format, tables []*schema.Table) ([]byte, error) {
	return encode(f, FromTables(tables))
}

// Load reads the snapshot at path.
func Load(path string) ([]*schema.Table, error) {
	f, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot file: %w", err)
	}
	tables, err := Decode(f, path, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tables, nil
}

// Write stores tables at path in the format of its extension.
func Write(path string, tables []*schema.Table) error {
	f, err := FormatOf(path)
	if err != nil {
		return err
	}
	data, err := Encode(f, tables)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Manifest lists migrations in order, each with the snapshot it produces.
type Manifest struct {
	Migrations []ManifestEntry `yaml:"migrations" json:"migrations"`
}

// ManifestEntry names one migration. Snapshot paths are relative to the
// manifest file.
type ManifestEntry struct {
	Name     string `yaml:"name" json:"name"`
	Snapshot string `yaml:"snapshot" json:"snapshot"`
}

// LoadManifest reads the manifest at path.
func LoadManifest(path string) (*Manifest, error) {
	f, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m Manifest
	if err := decode(f, path, data, "#Manifest", &m); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	for i, e := range m.Migrations {
		if e.Name == "" || e.Snapshot == "" {
			return nil, fmt.Errorf("%s: migrations[%d]: name and snapshot are required", path, i)
		}
	}
	return &m, nil
}

// LoadMigrations reads a manifest and its snapshots and derives the
// migrations between consecutive snapshots.
func LoadMigrations(path string) ([]migrate.Migration, error) {
	m, err := LoadManifest(path)
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(path)
	names := make([]string, 0, len(m.Migrations))
	snapshots := make([][]*schema.Table, 0, len(m.Migrations))
	for _, e := range m.Migrations {
		p := e.Snapshot
		if !filepath.IsAbs(p) {
			p = filepath.Join(dir, p)
		}
		tables, err := Load(p)
		if err != nil {
			return nil, fmt.Errorf("migration %q: %w", e.Name, err)
		}
		names = append(names, nfc(e.Name))
		snapshots = append(snapshots, tables)
	}
	return migrate.FromSnapshots(names, snapshots)
}

func decode(f Format, filename string, data []byte, def string, v any) error {
	switch f {
	case YAML:
		return decodeYAML(data, v)
	case CUE:
		return decodeCUE(filename, data, def, v)
	}
	return fmt.Errorf("unknown format %q", f)
}

func encode(f Format, v any) ([]byte, error) {
	switch f {
	case YAML:
		return encodeYAML(v)
	case CUE:
		return encodeCUE(v)
	}
	return nil, fmt.Errorf("unknown format %q", f)
}
