// Package schemafile reads and writes schema snapshots and migration
// manifests as YAML or CUE files.
//
// Both formats share one document model. Identifiers are normalized to NFC on
// load so that snapshots written on different systems fingerprint the same.
package schemafile

import (
	"fmt"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/typedsql/internal/schema"
)

// Snapshot is the file form of a []*schema.Table.
type Snapshot struct {
	Tables []Table `yaml:"tables" json:"tables"`
}

// Table is the file form of a schema.Table. ID defaults to Name.
type Table struct {
	ID          string       `yaml:"id,omitempty" json:"id,omitempty"`
	Name        string       `yaml:"name" json:"name"`
	Columns     []Column     `yaml:"columns" json:"columns"`
	ForeignKeys []ForeignKey `yaml:"foreign_keys,omitempty" json:"foreign_keys,omitempty"`
	Indices     []Index      `yaml:"indices,omitempty" json:"indices,omitempty"`
}

// Column is the file form of a schema.Column. Name defaults to Member and
// Type uses the "kind" or "kind?" notation.
type Column struct {
	Member        string `yaml:"member" json:"member"`
	Name          string `yaml:"name,omitempty" json:"name,omitempty"`
	Type          string `yaml:"type" json:"type"`
	PrimaryKey    bool   `yaml:"primary_key,omitempty" json:"primary_key,omitempty"`
	AutoIncrement bool   `yaml:"auto_increment,omitempty" json:"auto_increment,omitempty"`
	Length        int    `yaml:"length,omitempty" json:"length,omitempty"`
	NVarChar      bool   `yaml:"nvarchar,omitempty" json:"nvarchar,omitempty"`
	Precision     int    `yaml:"precision,omitempty" json:"precision,omitempty"`
	Scale         int    `yaml:"scale,omitempty" json:"scale,omitempty"`
}

// ForeignKey references another table by ID.
type ForeignKey struct {
	Name             string   `yaml:"name" json:"name"`
	Columns          []string `yaml:"columns" json:"columns"`
	References       string   `yaml:"references" json:"references"`
	ReferenceColumns []string `yaml:"reference_columns" json:"reference_columns"`
}

type Index struct {
	Name    string   `yaml:"name" json:"name"`
	Columns []string `yaml:"columns" json:"columns"`
	Unique  bool     `yaml:"unique,omitempty" json:"unique,omitempty"`
}

// Schema converts s to validated schema tables.
func (s *Snapshot) Schema() ([]*schema.Table, error) {
	out := make([]*schema.Table, 0, len(s.Tables))
	for i, td := range s.Tables {
		t, err := td.table()
		if err != nil {
			return nil, fmt.Errorf("tables[%d]: %w", i, err)
		}
		out = append(out, t)
	}
	if err := schema.Validate(out); err != nil {
		return nil, err
	}
	return out, nil
}

func (td Table) table() (*schema.Table, error) {
	name := nfc(td.Name)
	id := nfc(td.ID)
	if id == "" {
		id = name
	}
	b := schema.NewTable(schema.TableID(id), name)
	for _, c := range td.Columns {
		typ, err := schema.ParseType(c.Type)
		if err != nil {
			return nil, fmt.Errorf("table %q: column %q: %w", name, c.Member, err)
		}
		opts := []schema.ColumnOption{}
		if c.Name != "" {
			opts = append(opts, schema.SqlName(nfc(c.Name)))
		}
		if typ.Nullable {
			opts = append(opts, schema.Nullable())
		}
		if c.PrimaryKey {
			opts = append(opts, schema.PrimaryKey())
		}
		if c.AutoIncrement {
			opts = append(opts, schema.AutoIncrement())
		}
		if c.Length > 0 {
			opts = append(opts, schema.Length(c.Length))
		}
		if c.NVarChar {
			opts = append(opts, schema.NVarChar())
		}
		if c.Precision > 0 {
			opts = append(opts, schema.Precision(c.Precision, c.Scale))
		}
		b.Column(nfc(c.Member), typ.Kind, opts...)
	}
	for _, fk := range td.ForeignKeys {
		b.ForeignKey(nfc(fk.Name), nfcAll(fk.Columns), schema.TableID(nfc(fk.References)), nfcAll(fk.ReferenceColumns))
	}
	for _, ix := range td.Indices {
		b.Index(nfc(ix.Name), ix.Unique, nfcAll(ix.Columns)...)
	}
	return b.Build()
}

// FromTables converts schema tables to their file form. Defaults are left
// out: a column name equal to its member and a table ID equal to its name.
func FromTables(tables []*schema.Table) *Snapshot {
	s := &Snapshot{Tables: make([]Table, 0, len(tables))}
	for _, t := range tables {
		td := Table{Name: t.Name, Columns: make([]Column, 0, len(t.Columns))}
		if string(t.ID) != t.Name {
			td.ID = string(t.ID)
		}
		for _, c := range t.Columns {
			cd := Column{
				Member:        c.MemberName,
				Type:          c.Type.String(),
				PrimaryKey:    c.PrimaryKey,
				AutoIncrement: c.AutoIncrement,
				Length:        c.Info.StringLength,
				NVarChar:      c.Info.NVarChar,
				Precision:     c.Info.Precision,
				Scale:         c.Info.Scale,
			}
			if c.SqlName != c.MemberName {
				cd.Name = c.SqlName
			}
			td.Columns = append(td.Columns, cd)
		}
		for _, fk := range t.ForeignKeys {
			td.ForeignKeys = append(td.ForeignKeys, ForeignKey{
				Name:             fk.Name,
				Columns:          fk.Columns,
				References:       string(fk.ReferenceTable),
				ReferenceColumns: fk.ReferenceColumns,
			})
		}
		for _, ix := range t.Indices {
			td.Indices = append(td.Indices, Index{Name: ix.Name, Columns: ix.Columns, Unique: ix.Unique})
		}
		s.Tables = append(s.Tables, td)
	}
	return s
}

func nfc(s string) string { return norm.NFC.String(s) }

func nfcAll(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = nfc(s)
	}
	return out
}
