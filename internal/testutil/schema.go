// Package testutil provides shared fixtures: a small shop schema, its rows
// and deterministic clocks and run IDs.
package testutil

import (
	"github.com/roach88/typedsql/internal/schema"
)

// Table identities of the shop schema.
const (
	UsersID    schema.TableID = "shop.User"
	ProductsID schema.TableID = "shop.Product"
	OrdersID   schema.TableID = "shop.Order"
)

// Users returns a fresh Users table: identity key, a renamed column and a
// nullable column.
func Users() *schema.Table {
	return schema.NewTable(UsersID, "Users").
		Column("Id", schema.Int32, schema.PrimaryKey(), schema.AutoIncrement()).
		Column("Name", schema.String, schema.Length(100)).
		Column("Email", schema.String, schema.SqlName("email_address"), schema.Nullable(), schema.Length(255)).
		Column("Age", schema.Int32).
		Column("Active", schema.Bool).
		Index("IX_Users_Name", false, "Name").
		MustBuild()
}

// Products returns a fresh Products table with a decimal price.
func Products() *schema.Table {
	return schema.NewTable(ProductsID, "Products").
		Column("Id", schema.Int32, schema.PrimaryKey(), schema.AutoIncrement()).
		Column("Name", schema.String, schema.Length(100)).
		Column("Price", schema.Decimal, schema.Precision(10, 2)).
		MustBuild()
}

// Orders returns a fresh Orders table referencing Users and Products.
func Orders() *schema.Table {
	return schema.NewTable(OrdersID, "Orders").
		Column("Id", schema.Int32, schema.PrimaryKey(), schema.AutoIncrement()).
		Column("UserId", schema.Int32).
		Column("ProductId", schema.Int32).
		Column("Quantity", schema.Int32).
		Column("Note", schema.String, schema.Nullable(), schema.Length(200)).
		Column("Created", schema.DateTime).
		ForeignKey("FK_Orders_Users", []string{"UserId"}, UsersID, []string{"Id"}).
		ForeignKey("FK_Orders_Products", []string{"ProductId"}, ProductsID, []string{"Id"}).
		Index("IX_Orders_UserId", false, "UserId").
		MustBuild()
}

// Shop is the full fixture snapshot.
type Shop struct {
	Users    *schema.Table
	Products *schema.Table
	Orders   *schema.Table
}

// NewShop returns fresh fixture tables.
func NewShop() *Shop {
	return &Shop{Users: Users(), Products: Products(), Orders: Orders()}
}

// Tables returns the snapshot in dependency order.
func (s *Shop) Tables() []*schema.Table {
	return []*schema.Table{s.Users, s.Products, s.Orders}
}
