package schemafile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/typedsql/internal/schema"
	"github.com/roach88/typedsql/internal/sqlir"
	"github.com/roach88/typedsql/internal/testutil"
)

const usersYAML = `tables:
  - name: Users
    columns:
      - member: Id
        type: int32
        primary_key: true
        auto_increment: true
      - member: Name
        type: string
        length: 100
      - member: Email
        name: email_address
        type: string?
    indices:
      - name: IX_Users_Email
        columns: [email_address]
        unique: true
`

const usersCUE = `package shop

tables: [{
	name: "Users"
	columns: [
		{member: "Id", type: "int32", primary_key: true, auto_increment: true},
		{member: "Name", type: "string", length: 100},
		{member: "Email", name: "email_address", type: "string?"},
	]
	indices: [{name: "IX_Users_Email", columns: ["email_address"], unique: true}]
}]
`

func TestDecodeFormatsAgree(t *testing.T) {
	fromYAML, err := Decode(YAML, "users.yaml", []byte(usersYAML))
	require.NoError(t, err)
	fromCUE, err := Decode(CUE, "users.cue", []byte(usersCUE))
	require.NoError(t, err)
	assert.Equal(t, fromYAML, fromCUE)

	require.Len(t, fromYAML, 1)
	users := fromYAML[0]
	assert.Equal(t, schema.TableID("Users"), users.ID)
	email := users.Column("Email")
	require.NotNil(t, email)
	assert.Equal(t, "email_address", email.SqlName)
	assert.Equal(t, schema.NullableOf(schema.String), email.Type)
	assert.True(t, users.Column("Id").AutoIncrement)
	assert.Equal(t, 100, users.Column("Name").Info.StringLength)
}

func TestRoundTrip(t *testing.T) {
	shop := testutil.NewShop()
	want, err := schema.Fingerprint(shop.Tables())
	require.NoError(t, err)

	for _, f := range []Format{YAML, CUE} {
		t.Run(string(f), func(t *testing.T) {
			data, err := Encode(f, shop.Tables())
			require.NoError(t, err)
			tables, err := Decode(f, "shop."+string(f), data)
			require.NoError(t, err, string(data))
			got, err := schema.Fingerprint(tables)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	_, err := Decode(YAML, "bad.yaml", []byte("tables:\n  - name: T\n    colums: []\n"))
	require.Error(t, err)

	_, err = Decode(CUE, "bad.cue", []byte("tables: [{name: \"T\", columns: [], colums: []}]\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "colums")
}

func TestDecodeCUESyntaxErrorHasPosition(t *testing.T) {
	_, err := Decode(CUE, "bad.cue", []byte("tables: [{name: \"T\",\n"))
	require.Error(t, err)
	var fe *FileError
	require.ErrorAs(t, err, &fe)
	assert.True(t, fe.Pos.IsValid())
	assert.Contains(t, err.Error(), "bad.cue")
}

func TestDecodeRejectsBadSchema(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown kind", "tables:\n  - name: T\n    columns:\n      - {member: Id, type: int33}\n"},
		{"duplicate table", "tables:\n  - {name: T, columns: [{member: Id, type: int32}]}\n  - {name: T, columns: [{member: Id, type: int32}]}\n"},
		{"index on unknown column", "tables:\n  - name: T\n    columns: [{member: Id, type: int32}]\n    indices: [{name: IX, columns: [Nope]}]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(YAML, "t.yaml", []byte(tt.doc))
			require.Error(t, err)
		})
	}
}

func TestDecodeNormalizesIdentifiers(t *testing.T) {
	doc := "tables:\n  - name: \"Cafe\u0301\"\n    columns: [{member: Id, type: int32}]\n"
	tables, err := Decode(YAML, "t.yaml", []byte(doc))
	require.NoError(t, err)
	assert.Equal(t, "Caf\u00e9", tables[0].Name)
	assert.Equal(t, schema.TableID("Caf\u00e9"), tables[0].ID)
}

func TestFormatOf(t *testing.T) {
	for path, want := range map[string]Format{"a.yaml": YAML, "a.YML": YAML, "dir/a.cue": CUE} {
		f, err := FormatOf(path)
		require.NoError(t, err)
		assert.Equal(t, want, f)
	}
	_, err := FormatOf("a.json")
	require.Error(t, err)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoadMigrations(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "001.yaml", usersYAML)
	writeFile(t, dir, "002.cue", `tables: [{
	name: "Users"
	columns: [
		{member: "Id", type: "int32", primary_key: true, auto_increment: true},
		{member: "Name", type: "string", length: 100},
		{member: "Email", name: "email_address", type: "string?"},
		{member: "Age", type: "int32?"},
	]
	indices: [{name: "IX_Users_Email", columns: ["email_address"], unique: true}]
}]
`)

	for _, manifest := range []string{
		writeFile(t, dir, "manifest.yaml", "migrations:\n  - {name: 001_users, snapshot: 001.yaml}\n  - {name: 002_age, snapshot: 002.cue}\n"),
		writeFile(t, dir, "manifest.cue", `migrations: [
	{name: "001_users", snapshot: "001.yaml"},
	{name: "002_age", snapshot: "002.cue"},
]
`),
	} {
		t.Run(filepath.Ext(manifest), func(t *testing.T) {
			ms, err := LoadMigrations(manifest)
			require.NoError(t, err)
			require.Len(t, ms, 2)
			assert.Equal(t, "001_users", ms[0].Name)
			assert.IsType(t, &sqlir.CreateTable{}, ms[0].Up[0])
			require.Len(t, ms[1].Up, 1)
			add, ok := ms[1].Up[0].(*sqlir.AddColumn)
			require.True(t, ok)
			assert.Equal(t, "Age", add.Column.SqlName)
			assert.Equal(t, []sqlir.Statement{&sqlir.DropColumn{TableName: "Users", ColumnName: "Age"}}, ms[1].Down)
		})
	}
}

func TestLoadMigrationsMissingSnapshot(t *testing.T) {
	dir := t.TempDir()
	manifest := writeFile(t, dir, "manifest.yaml", "migrations:\n  - {name: \"001\", snapshot: missing.yaml}\n")
	_, err := LoadMigrations(manifest)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `migration "001"`)
}

func TestWriteThenLoad(t *testing.T) {
	shop := testutil.NewShop()
	for _, name := range []string{"shop.yaml", "shop.cue"} {
		p := filepath.Join(t.TempDir(), name)
		require.NoError(t, Write(p, shop.Tables()))
		tables, err := Load(p)
		require.NoError(t, err)
		assert.Len(t, tables, len(shop.Tables()))
	}
}
