// Package schema describes tables, columns, foreign keys and indices.
//
// This package contains plain data plus the explicit registration API used to
// declare tables. All other internal packages import schema; schema imports
// nothing internal.
//
// Two kinds of names exist for every column:
//   - MemberName: the name queries use to reference the field
//   - SqlName: the name rendered into SQL and used for diffing
//
// Foreign keys reference tables by TableID, not by SQL name. Renaming the SQL
// name of a referenced table keeps the link intact; only a change of identity
// breaks it. Links are resolved against a snapshot when statements are built.
//
// A snapshot is an ordered []*Table. Order only affects output determinism;
// the differ matches tables by name.
package schema
