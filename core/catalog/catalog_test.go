package catalog

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/tablerest/core"
	"github.com/relabs-tech/tablerest/core/csql"
)

const northwindDDL = `
CREATE TABLE categories (
	CategoryID INTEGER PRIMARY KEY,
	CategoryName VARCHAR(15) NOT NULL
);
CREATE TABLE products (
	ProductID INTEGER PRIMARY KEY,
	ProductName VARCHAR(40) NOT NULL,
	CategoryID INTEGER REFERENCES categories(CategoryID),
	UnitPrice DECIMAL(10,4) DEFAULT 0,
	Discontinued BOOLEAN NOT NULL DEFAULT 0,
	Released DATE
);
CREATE TABLE order_details (
	OrderID INTEGER NOT NULL,
	ProductID INTEGER NOT NULL REFERENCES products(ProductID),
	Quantity SMALLINT,
	PRIMARY KEY (OrderID, ProductID)
);
CREATE TABLE audit (message TEXT);
`

func openSQLite(t *testing.T, ddl string) *csql.DB {
	t.Helper()
	db, err := csql.Open(context.Background(), csql.Configuration{
		Dialect:  csql.SQLite,
		Database: filepath.Join(t.TempDir(), "catalog.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	if ddl != "" {
		_, err = db.Exec(ddl)
		require.NoError(t, err)
	}
	return db
}

func TestLoad_SQLite(t *testing.T) {
	db := openSQLite(t, northwindDDL)

	cat, err := Load(context.Background(), db)
	require.NoError(t, err)
	assert.Equal(t, []string{"audit", "categories", "order_details", "products"}, cat.Names())

	products, ok := cat.Lookup("products")
	require.True(t, ok)
	assert.Equal(t, []string{"ProductID", "ProductName", "CategoryID", "UnitPrice", "Discontinued", "Released"}, products.ColumnNames())
	assert.Equal(t, []string{"ProductID"}, products.PrimaryKeys)

	key, ok := products.Key()
	require.True(t, ok)
	assert.Equal(t, "ProductID", key.Name)
	assert.Equal(t, TypeInteger, key.Type)
	assert.True(t, key.AutoIncrement)
	assert.True(t, key.PrimaryKey)
	assert.False(t, key.Nullable)

	name, _ := products.Column("ProductName")
	assert.Equal(t, TypeString, name.Type)
	assert.False(t, name.Nullable)
	assert.False(t, name.HasDefault)
	assert.Equal(t, 2, name.Position)

	price, _ := products.Column("UnitPrice")
	assert.Equal(t, TypeDecimal, price.Type)
	assert.True(t, price.Nullable)
	assert.True(t, price.HasDefault)

	discontinued, _ := products.Column("Discontinued")
	assert.Equal(t, TypeBoolean, discontinued.Type)

	released, _ := products.Column("Released")
	assert.Equal(t, TypeDate, released.Type)

	assert.Equal(t, []ForeignKey{{Column: "CategoryID", ReferencedTable: "categories", ReferencedColumn: "CategoryID"}}, products.ForeignKeys)

	details, ok := cat.Lookup("order_details")
	require.True(t, ok)
	assert.Equal(t, []string{"OrderID", "ProductID"}, details.PrimaryKeys)
	_, ok = details.Key()
	assert.False(t, ok, "composite key has no designated key")
	orderID, _ := details.Column("OrderID")
	assert.False(t, orderID.AutoIncrement)

	audit, ok := cat.Lookup("audit")
	require.True(t, ok)
	assert.Equal(t, []string{}, audit.PrimaryKeys)
	assert.Equal(t, []ForeignKey{}, audit.ForeignKeys)
	_, ok = audit.Key()
	assert.False(t, ok)

	_, ok = cat.Lookup("customers")
	assert.False(t, ok)
}

func TestLoad_NoTables(t *testing.T) {
	db := openSQLite(t, "")
	_, err := Load(context.Background(), db)
	assert.True(t, core.IsKind(err, core.KindSchema), "got %v", err)
}

func TestLoad_Unreachable(t *testing.T) {
	db := openSQLite(t, northwindDDL)
	db.Close()
	_, err := Load(context.Background(), db)
	assert.True(t, core.IsKind(err, core.KindConnection), "got %v", err)
}

func TestLoad_Postgres(t *testing.T) {
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer sqlDB.Close()
	db := csql.Wrap(sqlDB, csql.Postgres, "")

	mock.ExpectQuery(postgresTablesQuery).WithArgs("public").
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}).AddRow("categories").AddRow("products"))
	mock.ExpectQuery(postgresColumnsQuery).WithArgs("public").
		WillReturnRows(sqlmock.NewRows([]string{"table_name", "column_name", "data_type", "is_nullable", "column_default", "is_identity", "ordinal_position"}).
			AddRow("categories", "category_id", "integer", "NO", nil, "YES", 1).
			AddRow("categories", "category_name", "character varying", "NO", nil, "NO", 2).
			AddRow("products", "product_id", "integer", "NO", "nextval('products_product_id_seq'::regclass)", "NO", 1).
			AddRow("products", "product_name", "character varying", "NO", nil, "NO", 2).
			AddRow("products", "category_id", "smallint", "YES", nil, "NO", 3).
			AddRow("products", "unit_price", "numeric", "YES", "0", "NO", 4).
			AddRow("products", "discontinued", "boolean", "NO", "false", "NO", 5).
			AddRow("products", "updated_at", "timestamp without time zone", "YES", nil, "NO", 6))
	mock.ExpectQuery(postgresPrimaryKeysQuery).WithArgs("public").
		WillReturnRows(sqlmock.NewRows([]string{"table_name", "column_name"}).
			AddRow("categories", "category_id").
			AddRow("products", "product_id"))
	mock.ExpectQuery(postgresForeignKeysQuery).WithArgs("public").
		WillReturnRows(sqlmock.NewRows([]string{"table_name", "column_name", "table_name", "column_name"}).
			AddRow("products", "category_id", "categories", "category_id"))

	cat, err := Load(context.Background(), db)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, []string{"categories", "products"}, cat.Names())
	categories, _ := cat.Lookup("categories")
	key, ok := categories.Key()
	require.True(t, ok)
	assert.True(t, key.AutoIncrement, "identity column")

	products, _ := cat.Lookup("products")
	key, ok = products.Key()
	require.True(t, ok)
	assert.Equal(t, "product_id", key.Name)
	assert.True(t, key.AutoIncrement, "serial column")
	assert.True(t, key.HasDefault)

	expected := []struct {
		name     string
		typ      Type
		nullable bool
	}{
		{"product_id", TypeInteger, false},
		{"product_name", TypeString, false},
		{"category_id", TypeInteger, true},
		{"unit_price", TypeDecimal, true},
		{"discontinued", TypeBoolean, false},
		{"updated_at", TypeDateTime, true},
	}
	for i, e := range expected {
		c := products.Columns[i]
		assert.Equal(t, e.name, c.Name)
		assert.Equal(t, e.typ, c.Type, c.Name)
		assert.Equal(t, e.nullable, c.Nullable, c.Name)
		assert.Equal(t, i+1, c.Position)
	}
	assert.Equal(t, []ForeignKey{{Column: "category_id", ReferencedTable: "categories", ReferencedColumn: "category_id"}}, products.ForeignKeys)
}

func TestLoad_PostgresNoTables(t *testing.T) {
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer sqlDB.Close()
	db := csql.Wrap(sqlDB, csql.Postgres, "sales")

	mock.ExpectQuery(postgresTablesQuery).WithArgs("sales").WillReturnRows(sqlmock.NewRows([]string{"table_name"}))
	mock.ExpectQuery(postgresColumnsQuery).WithArgs("sales").WillReturnRows(sqlmock.NewRows([]string{"table_name"}))
	mock.ExpectQuery(postgresPrimaryKeysQuery).WithArgs("sales").WillReturnRows(sqlmock.NewRows([]string{"table_name"}))
	mock.ExpectQuery(postgresForeignKeysQuery).WithArgs("sales").WillReturnRows(sqlmock.NewRows([]string{"table_name"}))

	_, err = Load(context.Background(), db)
	assert.True(t, core.IsKind(err, core.KindSchema), "got %v", err)
	assert.Contains(t, err.Error(), "no tables found in schema 'sales'")
}

func TestLoad_MySQL(t *testing.T) {
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer sqlDB.Close()
	db := csql.Wrap(sqlDB, csql.MySQL, "")

	mock.ExpectQuery(mysqlTablesQuery).
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME"}).AddRow("products"))
	mock.ExpectQuery(mysqlColumnsQuery).
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME", "COLUMN_NAME", "DATA_TYPE", "COLUMN_TYPE", "IS_NULLABLE", "COLUMN_DEFAULT", "EXTRA", "ORDINAL_POSITION"}).
			AddRow("products", "ProductID", "int", "int(11)", "NO", nil, "auto_increment", 1).
			AddRow("products", "ProductName", "varchar", "varchar(40)", "NO", nil, "", 2).
			AddRow("products", "UnitPrice", "decimal", "decimal(10,4)", "YES", "0.0000", "", 3).
			AddRow("products", "Discontinued", "bit", "bit(1)", "NO", "b'0'", "", 4).
			AddRow("products", "InStock", "tinyint", "tinyint(1)", "NO", "1", "", 5).
			AddRow("products", "UnitsInStock", "smallint", "smallint(2) unsigned", "YES", nil, "", 6))
	mock.ExpectQuery(mysqlPrimaryKeysQuery).
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME", "COLUMN_NAME"}).AddRow("products", "ProductID"))
	mock.ExpectQuery(mysqlForeignKeysQuery).
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME", "COLUMN_NAME", "REFERENCED_TABLE_NAME", "REFERENCED_COLUMN_NAME"}))

	cat, err := Load(context.Background(), db)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	products, _ := cat.Lookup("products")
	key, ok := products.Key()
	require.True(t, ok)
	assert.True(t, key.AutoIncrement)
	assert.Equal(t, "int(11)", key.DBType)

	for name, typ := range map[string]Type{
		"ProductName":  TypeString,
		"UnitPrice":    TypeDecimal,
		"Discontinued": TypeBoolean,
		"InStock":      TypeBoolean,
		"UnitsInStock": TypeInteger,
	} {
		c, ok := products.Column(name)
		require.True(t, ok, name)
		assert.Equal(t, typ, c.Type, name)
	}
}

func TestNew(t *testing.T) {
	_, err := New([]*Table{{Name: "a", Columns: []Column{{Name: "x"}}, PrimaryKeys: []string{"id"}}})
	assert.True(t, core.IsKind(err, core.KindSchema))

	_, err = New([]*Table{{Name: "a"}, {Name: "a"}})
	assert.True(t, core.IsKind(err, core.KindSchema))

	cat, err := New([]*Table{
		{Name: "b", Columns: []Column{{Name: "id", Nullable: true}}, PrimaryKeys: []string{"id"}},
		{Name: "a"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, cat.Names())
	assert.Equal(t, "a", cat.Tables()[0].Name)
	b, _ := cat.Lookup("b")
	key, ok := b.Key()
	require.True(t, ok)
	assert.False(t, key.Nullable)
	assert.True(t, key.PrimaryKey)

	names := cat.Names()
	names[0] = "changed"
	assert.Equal(t, []string{"a", "b"}, cat.Names())
}

func TestSemanticType(t *testing.T) {
	tests := []struct {
		dataType   string
		columnType string
		want       Type
	}{
		{"integer", "", TypeInteger},
		{"bigint", "", TypeInteger},
		{"BIGINT UNSIGNED", "", TypeInteger},
		{"year", "", TypeInteger},
		{"double precision", "", TypeFloat},
		{"real", "", TypeFloat},
		{"FLOAT", "", TypeFloat},
		{"numeric", "", TypeDecimal},
		{"DECIMAL(10,2)", "", TypeDecimal},
		{"money", "", TypeDecimal},
		{"boolean", "", TypeBoolean},
		{"tinyint", "tinyint(1)", TypeBoolean},
		{"tinyint", "tinyint(4)", TypeInteger},
		{"bit", "bit(1)", TypeBoolean},
		{"date", "", TypeDate},
		{"time without time zone", "", TypeTime},
		{"timestamp with time zone", "", TypeDateTime},
		{"datetime", "", TypeDateTime},
		{"character varying", "", TypeString},
		{"NVARCHAR(40)", "", TypeString},
		{"text", "", TypeString},
		{"uuid", "", TypeString},
		{"enum", "enum('a','b')", TypeString},
		{"bytea", "", TypeBinary},
		{"longblob", "", TypeBinary},
		{"varbinary", "", TypeBinary},
		{"jsonb", "", TypeJSON},
		{"ARRAY", "", TypeJSON},
		{"", "", TypeUnknown},
		{"geometry", "", TypeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.dataType+"/"+tt.columnType, func(t *testing.T) {
			assert.Equal(t, tt.want, semanticType(tt.dataType, tt.columnType))
		})
	}
}
