package sqlir

import (
	"github.com/roach88/typedsql/internal/schema"
)

// Statement is one dialect-neutral SQL statement (SqlStatement).
//
// This is a sealed interface - only types in this package implement it.
// Statements are plain data: the schema differ returns them and the CLI
// serializes them.
type Statement interface {
	statementNode() // Marker method - seals interface to this package
}

// CreateTable creates a table with its columns and primary key. Indices and
// foreign keys are added by separate statements.
type CreateTable struct {
	Table *schema.Table
}

func (*CreateTable) statementNode() {}

// DropTable drops a table by SQL name.
type DropTable struct {
	TableName string
}

func (*DropTable) statementNode() {}

// AddColumn adds a column to an existing table.
type AddColumn struct {
	TableName string
	Column    *schema.Column
}

func (*AddColumn) statementNode() {}

// DropColumn drops a column by SQL name.
type DropColumn struct {
	TableName  string
	ColumnName string
}

func (*DropColumn) statementNode() {}

// AddForeignKey adds a foreign key. ReferenceTableName is the SQL name of
// ForeignKey.ReferenceTable, resolved against the snapshot the statement was
// derived from.
type AddForeignKey struct {
	TableName          string
	ForeignKey         *schema.ForeignKey
	ReferenceTableName string
}

func (*AddForeignKey) statementNode() {}

// DropForeignKey drops a foreign key by name.
type DropForeignKey struct {
	TableName string
	Name      string
}

func (*DropForeignKey) statementNode() {}

// AddIndex creates an index.
type AddIndex struct {
	TableName string
	Index     *schema.Index
}

func (*AddIndex) statementNode() {}

// DropIndex drops an index by name.
type DropIndex struct {
	TableName string
	Name      string
}

func (*DropIndex) statementNode() {}

// Assignment sets one column.
type Assignment struct {
	Column *schema.Column
	Value  Expr
}

// Insert inserts one row of values.
type Insert struct {
	Table  *schema.Table
	Values []Assignment
}

func (*Insert) statementNode() {}

// InsertSelect inserts the rows of a query. Columns[i] receives the i-th
// result member of Query.
type InsertSelect struct {
	Table   *schema.Table
	Columns []*schema.Column
	Query   *Query
}

func (*InsertSelect) statementNode() {}

// SelectStatement returns the rows of a query.
type SelectStatement struct {
	Query *Query
}

func (*SelectStatement) statementNode() {}

// Update sets columns of the rows of Table selected by Query. Query.From is
// Table and Query.FromAlias its alias; joins and wheres narrow the rows.
type Update struct {
	Table *schema.Table
	Query *Query
	Set   []Assignment
}

func (*Update) statementNode() {}

// Delete removes the rows of Table selected by Query.
type Delete struct {
	Table *schema.Table
	Query *Query
}

func (*Delete) statementNode() {}

// DeclareVariable declares a session variable.
type DeclareVariable struct {
	Placeholder *Placeholder
}

func (*DeclareVariable) statementNode() {}

// SetVariable assigns a session variable.
type SetVariable struct {
	Placeholder *Placeholder
	Value       Expr
}

func (*SetVariable) statementNode() {}

// If runs Then when Test holds and Else otherwise.
type If struct {
	Test Expr
	Then []Statement
	Else []Statement
}

func (*If) statementNode() {}

// IsDDL reports whether s changes the schema.
func IsDDL(s Statement) bool {
	switch s.(type) {
	case *CreateTable, *DropTable, *AddColumn, *DropColumn,
		*AddForeignKey, *DropForeignKey, *AddIndex, *DropIndex:
		return true
	}
	return false
}

// IsDML reports whether s reports an affected-row count.
func IsDML(s Statement) bool {
	switch s.(type) {
	case *Insert, *InsertSelect, *Update, *Delete:
		return true
	}
	return false
}
