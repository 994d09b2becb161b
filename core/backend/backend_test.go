package backend_test

import (
	"compress/gzip"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/tablerest/core"
	"github.com/relabs-tech/tablerest/core/backend"
	"github.com/relabs-tech/tablerest/core/client"
	"github.com/relabs-tech/tablerest/core/logger"
)

var testService *TestService

func TestMain(m *testing.M) {
	testService = CreateTestService(northwindDDL, backend.Builder{})
	code := m.Run()
	testService.Close()
	os.Exit(code)
}

type Product struct {
	ProductID    int64   `json:"ProductID"`
	ProductName  string  `json:"ProductName"`
	CategoryID   *int64  `json:"CategoryID"`
	UnitPrice    float64 `json:"UnitPrice"`
	Discontinued bool    `json:"Discontinued"`
}

func TestRoot(t *testing.T) {
	var root struct {
		Version string   `json:"version"`
		Tables  []string `json:"tables"`
	}
	var response client.Response
	status, err := testService.Client.RawGet("/", &response)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, response.Success)
	assert.Equal(t, backend.RootMessage, response.Message)

	_, err = testService.Client.RawGet("/", &root)
	require.NoError(t, err)
	assert.Equal(t, "unset", root.Version)
	assert.Equal(t, []string{"categories", "order_details", "products"}, root.Tables)
}

func TestTables(t *testing.T) {
	var tables struct {
		Tables []string `json:"tables"`
	}
	_, err := testService.Client.Tables(&tables)
	require.NoError(t, err)
	assert.Equal(t, []string{"categories", "order_details", "products"}, tables.Tables)

	var schema struct {
		Name    string `json:"table_name"`
		Columns []struct {
			Name          string `json:"name"`
			Type          string `json:"type"`
			Nullable      bool   `json:"nullable"`
			AutoIncrement bool   `json:"auto_increment"`
			PrimaryKey    bool   `json:"primary_key"`
		} `json:"columns"`
		PrimaryKeys []string `json:"primary_keys"`
		ForeignKeys []struct {
			Column          string `json:"column"`
			ReferencedTable string `json:"referenced_table"`
		} `json:"foreign_keys"`
	}
	_, err = testService.Client.Table("products").Schema(&schema)
	require.NoError(t, err)
	assert.Equal(t, "products", schema.Name)
	assert.Equal(t, []string{"ProductID"}, schema.PrimaryKeys)
	require.Len(t, schema.Columns, 5)
	assert.Equal(t, "ProductID", schema.Columns[0].Name)
	assert.True(t, schema.Columns[0].PrimaryKey)
	assert.True(t, schema.Columns[0].AutoIncrement)
	assert.Equal(t, "decimal", schema.Columns[3].Type)
	require.Len(t, schema.ForeignKeys, 1)
	assert.Equal(t, "categories", schema.ForeignKeys[0].ReferencedTable)

	var response client.Response
	status, err := testService.Client.Table("nosuch").Schema(&response)
	assert.Error(t, err)
	assert.Equal(t, http.StatusNotFound, status)
	assert.False(t, response.Success)
	assert.Equal(t, "Table 'nosuch' not found", response.Error)
}

func TestProductLifecycle(t *testing.T) {
	products := testService.Client.Table("products")

	var product Product
	status, err := products.Create(map[string]interface{}{"ProductName": "Widget", "UnitPrice": 9.99}, &product)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, status)
	require.NotZero(t, product.ProductID)
	assert.Equal(t, "Widget", product.ProductName)
	assert.Equal(t, 9.99, product.UnitPrice)
	assert.Nil(t, product.CategoryID)

	var read Product
	_, err = products.Get(product.ProductID, &read)
	require.NoError(t, err)
	assert.Equal(t, product, read)

	var updated Product
	status, err = products.Update(product.ProductID, []byte(`{"UnitPrice": 8.99, "Discontinued": true}`), &updated)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 8.99, updated.UnitPrice)
	assert.True(t, updated.Discontinued)
	assert.Equal(t, "Widget", updated.ProductName)

	var response client.Response
	status, err = testService.Client.RawDelete(products.ItemPath(product.ProductID))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)

	status, err = products.Get(product.ProductID, &response)
	assert.Error(t, err)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not found", response.Message)
	assert.Equal(t, fmt.Sprintf("Record with ProductID=%d not found in 'products'", product.ProductID), response.Error)

	status, _ = products.Delete(product.ProductID)
	assert.Equal(t, http.StatusNotFound, status)

	var operations []core.Operation
	for _, n := range testService.Notifier.all() {
		if n.table != "products" {
			continue
		}
		if strings.Contains(n.payload, fmt.Sprintf(`"ProductID":%d,`, product.ProductID)) ||
			strings.Contains(n.payload, fmt.Sprintf(`"ProductID":%d}`, product.ProductID)) {
			operations = append(operations, n.operation)
		}
	}
	assert.Equal(t, []core.Operation{core.OperationCreate, core.OperationUpdate, core.OperationDelete}, operations)
}

func TestUnknownTable(t *testing.T) {
	var response client.Response
	status, err := testService.Client.Table("nosuch").List(-1, -1, &response)
	assert.Error(t, err)
	assert.Equal(t, http.StatusNotFound, status)
	assert.False(t, response.Success)
	assert.Equal(t, "Table 'nosuch' not found", response.Error)

	status, _ = testService.Client.Table("nosuch").Create(map[string]interface{}{"a": 1}, &response)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestList(t *testing.T) {
	s := CreateTestService(northwindDDL, backend.Builder{DefaultLimit: 3, MaxLimit: 5})
	defer s.Close()
	categories := s.Client.Table("categories")

	for i := 0; i < 7; i++ {
		_, err := categories.Create(map[string]interface{}{"CategoryName": fmt.Sprintf("category %d", i)}, nil)
		require.NoError(t, err)
	}

	type page struct {
		Table string                   `json:"table"`
		Items []map[string]interface{} `json:"items"`
		Total int64                    `json:"total"`
		Skip  int                      `json:"skip"`
		Limit int                      `json:"limit"`
	}

	var p page
	_, err := categories.List(-1, -1, &p)
	require.NoError(t, err)
	assert.Equal(t, "categories", p.Table)
	assert.Equal(t, int64(7), p.Total)
	assert.Equal(t, 3, p.Limit)
	require.Len(t, p.Items, 3)
	assert.Equal(t, "category 0", p.Items[0]["CategoryName"])

	_, err = categories.List(5, 1000, &p)
	require.NoError(t, err)
	assert.Equal(t, 5, p.Limit)
	assert.Equal(t, 5, p.Skip)
	require.Len(t, p.Items, 2)
	assert.Equal(t, "category 5", p.Items[0]["CategoryName"])

	_, err = categories.List(100, 0, &p)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Limit)
	assert.Empty(t, p.Items)

	var response client.Response
	for _, query := range []string{"?skip=abc", "?limit=1.5", "?limit=1&limit=2"} {
		status, err := s.Client.RawGet(categories.Path()+query, &response)
		assert.Error(t, err, query)
		assert.Equal(t, http.StatusBadRequest, status, query)
		assert.Equal(t, "validation failed", response.Message, query)
	}
}

func TestValidation(t *testing.T) {
	products := testService.Client.Table("products")
	var response client.Response

	for _, body := range []string{
		`{"ProductName": "Widget", "Color": "red"}`,
		`{"ProductName": 42}`,
		`{"ProductName": null}`,
		`{"UnitPrice": 1}`,
		`{"ProductID": 7, "ProductName": "Widget"}`,
		`not json`,
		`[{"ProductName": "Widget"}]`,
	} {
		status, err := products.Create([]byte(body), &response)
		assert.Error(t, err, body)
		assert.Equal(t, http.StatusBadRequest, status, body)
		assert.Equal(t, "validation failed", response.Message, body)
		assert.NotEmpty(t, response.Error, body)
	}

	var product Product
	_, err := products.Create(map[string]interface{}{"ProductName": "Gadget"}, &product)
	require.NoError(t, err)
	for _, body := range []string{`{}`, `{"ProductID": 0}`, `{"Color": "red"}`} {
		status, _ := products.Update(product.ProductID, []byte(body), &response)
		assert.Equal(t, http.StatusBadRequest, status, body)
	}

	status, _ := products.Get("abc", &response)
	assert.Equal(t, http.StatusBadRequest, status)

	// rows of tables with a composite key cannot be addressed by id
	status, _ = testService.Client.Table("order_details").Get(1, &response)
	assert.Equal(t, http.StatusBadRequest, status)
	status, err = testService.Client.Table("order_details").Create(map[string]interface{}{"OrderID": 1, "ProductID": 2}, nil)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusCreated, status)
}

func TestConflict(t *testing.T) {
	categories := testService.Client.Table("categories")
	_, err := categories.Create(map[string]interface{}{"CategoryName": "Beverages"}, nil)
	require.NoError(t, err)

	var response client.Response
	status, err := categories.Create(map[string]interface{}{"CategoryName": "Beverages"}, &response)
	assert.Error(t, err)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "conflict", response.Message)

	status, _ = testService.Client.Table("products").Create(map[string]interface{}{"ProductName": "Orphan", "CategoryID": 9999}, &response)
	assert.Equal(t, http.StatusConflict, status)
}

func TestRouting(t *testing.T) {
	var response client.Response

	status, err := testService.Client.RawGet("/nowhere/to/be/found", &response)
	assert.Error(t, err)
	assert.Equal(t, http.StatusNotFound, status)
	assert.False(t, response.Success)

	status, _ = testService.Client.RawDelete(testService.Client.Table("products").Path())
	assert.Equal(t, http.StatusMethodNotAllowed, status)

	status, _ = testService.Client.RawPut("/api/tables", []byte(`{}`), &response)
	assert.Equal(t, http.StatusMethodNotAllowed, status)
	assert.Equal(t, "method not allowed", response.Message)

	// POST falls through to the table routes
	status, _ = testService.Client.RawPost("/api/tables", []byte(`{}`), &response)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestMiddleware(t *testing.T) {
	r := httptest.NewRequest(http.MethodOptions, "/api/products", nil)
	w := httptest.NewRecorder()
	testService.Router.ServeHTTP(w, r)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodPut)

	r = httptest.NewRequest(http.MethodGet, "/api/products", nil)
	r.Header.Set(logger.RequestIDHeader, "request-42")
	r.Header.Set("Accept-Encoding", "gzip")
	w = httptest.NewRecorder()
	testService.Router.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "request-42", w.Header().Get(logger.RequestIDHeader))
	assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))

	reader, err := gzip.NewReader(w.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"success":true`)

	r = httptest.NewRequest(http.MethodGet, "/api/products", nil)
	w = httptest.NewRecorder()
	testService.Router.ServeHTTP(w, r)
	assert.NotEmpty(t, w.Header().Get(logger.RequestIDHeader))
}

func TestCORSOrigin(t *testing.T) {
	s := CreateTestService(northwindDDL, backend.Builder{CORSOrigin: "https://northwind.example"})
	defer s.Close()

	r := httptest.NewRequest(http.MethodOptions, "/api/products/1", nil)
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, r)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://northwind.example", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, logger.RequestIDHeader, w.Header().Get("Access-Control-Expose-Headers"))
}
