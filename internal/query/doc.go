// Package query is the typed query DSL and its two interpreters.
//
// A Query is a chain of stages starting at From or Values:
//
//	From(users).
//		Where("u", Gt(F("u", "Age"), Const(18))).
//		Join(From(orders), "u", "o", Eq(F("u", "Id"), F("o", "UserId")), nil).
//		OrderBy("x", F("x", "u", "Name")).
//		Select("x", Project(As("name", F("x", "u", "Name")), As("qty", F("x", "o", "Quantity"))))
//
// Stage arguments are expressions over named row parameters. The Parser
// translates a chain into one sqlir.Query, nesting earlier stages as
// subqueries where SQL cannot add a clause in place (after grouping,
// aggregation or a window). Env evaluates the same chain against a
// memory.Store with SQL semantics: three-valued logic, NULL-skipping
// aggregates and a window applied once after all other stages.
//
// After Offset or Limit only Offset, Limit and Select may follow.
package query
