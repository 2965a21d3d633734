// Package sqlir is the dialect-neutral SQL intermediate representation.
//
// The query parser produces sqlir values; dialect formatters consume them.
//
//	[query DSL] → [query.Parser] → [sqlir] → [sqlfmt.MySQL]
//	                                        → [sqlfmt.Postgres]
//	                                        → [sqlfmt.SQLServer]
//	                                        → [sqlfmt.SQLite]
//
// SEALED INTERFACES:
//
// Expr, Member and Statement are sealed with marker methods. Only types in
// this package implement them, so formatters can switch exhaustively:
//
//	switch e := expr.(type) {
//	case *Binary:
//	case *TableField:
//	...
//	default:
//	    return Unsupported("expression", fmt.Sprintf("%T", e))
//	}
//
// TYPES:
//
// Every expression reports its schema.Type. Binary comparisons and logical
// operators are bool; arithmetic keeps the operand type. Operands of a binary
// expression must have the same kind once nullability is stripped; NewBinary
// enforces this.
//
// Query (SqlQuery) is a mutable aggregate that the parser builds
// incrementally for one logical query. It is never shared between statements.
package sqlir
