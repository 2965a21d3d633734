package testutil

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/roach88/typedsql/internal/value"
)

// Fixture row contents, in insertion order. Ids are assigned 1..n by the
// identity column.

func UserRows() []*value.Record {
	return []*value.Record{
		value.RecordOf("Name", "ada", "Email", "ada@example.com", "Age", 36, "Active", true),
		value.RecordOf("Name", "bob", "Email", nil, "Age", 25, "Active", false),
		value.RecordOf("Name", "cy", "Email", "cy@example.com", "Age", 41, "Active", true),
		value.RecordOf("Name", "dee", "Email", nil, "Age", 19, "Active", true),
	}
}

func ProductRows() []*value.Record {
	return []*value.Record{
		value.RecordOf("Name", "pen", "Price", decimal.RequireFromString("1.50")),
		value.RecordOf("Name", "book", "Price", decimal.RequireFromString("12.00")),
		value.RecordOf("Name", "lamp", "Price", decimal.RequireFromString("30.25")),
	}
}

// OrderRows references users and products by their identity. dee has no
// orders.
func OrderRows() []*value.Record {
	at := func(month, day, hour, minute int) time.Time {
		return time.Date(2024, time.Month(month), day, hour, minute, 0, 0, time.UTC)
	}
	return []*value.Record{
		value.RecordOf("UserId", 1, "ProductId", 1, "Quantity", 3, "Note", "gift", "Created", at(1, 5, 10, 0)),
		value.RecordOf("UserId", 1, "ProductId", 2, "Quantity", 1, "Note", nil, "Created", at(2, 10, 12, 30)),
		value.RecordOf("UserId", 2, "ProductId", 2, "Quantity", 2, "Note", nil, "Created", at(2, 11, 8, 15)),
		value.RecordOf("UserId", 3, "ProductId", 3, "Quantity", 1, "Note", "fragile", "Created", at(3, 1, 9, 0)),
		value.RecordOf("UserId", 1, "ProductId", 3, "Quantity", 2, "Note", nil, "Created", at(3, 2, 18, 45)),
	}
}
