// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

/*
Package client provides easy and fast in-process access to the table REST api

Instead of marshalling HTTP, the client talks directly to the mux router. The client
is the tool of choice for unit tests. With NewWithURL the same client talks to a
remote server.
*/
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/gorilla/mux"
	"github.com/relabs-tech/tablerest/core/logger"
)

// Client provides easy access to the REST API.
type Client struct {
	router     *mux.Router
	httpClient *http.Client
	url        string
	ctx        context.Context

	defaultHeaders map[string]string
}

// NewWithRouter creates a client to make pseudo-REST requests to the backend,
// through the mux router
//
// WithContext() specifies a different base context all together.
func NewWithRouter(router *mux.Router) Client {
	return Client{
		router:         router,
		defaultHeaders: map[string]string{},
	}
}

// NewWithURL creates a client to make REST requests to the backend
func NewWithURL(url string) Client {
	return Client{
		url:            strings.TrimSuffix(url, "/"),
		httpClient:     &http.Client{Timeout: 20 * time.Second},
		defaultHeaders: map[string]string{},
	}
}

// WithHeader returns a new client with a default header added
func (c Client) WithHeader(key string, value string) Client {
	headers := map[string]string{key: value}
	for k, v := range c.defaultHeaders {
		if k != key {
			headers[k] = v
		}
	}
	c.defaultHeaders = headers
	return c
}

// WithRequestID returns a new client which sends requestID with every request
func (c Client) WithRequestID(requestID string) Client {
	return c.WithHeader(logger.RequestIDHeader, requestID)
}

// WithContext returns a new client with specific request context
func (c Client) WithContext(ctx context.Context) Client {
	c.ctx = ctx
	return c
}

// Context returns the base context of all requests
func (c Client) Context() context.Context {
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

// Response is the decoded envelope of a response. Data is kept raw.
type Response struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Table gives access to the rows of a single table
type Table struct {
	client *Client
	name   string
}

// Table returns a new table client
func (c Client) Table(name string) Table {
	return Table{client: &c, name: name}
}

// Path returns the path of the table
func (t Table) Path() string {
	return "/api/" + url.PathEscape(t.name)
}

// ItemPath returns the path of a single row
func (t Table) ItemPath(id interface{}) string {
	return t.Path() + "/" + url.PathEscape(fmt.Sprint(id))
}

// List lists rows of the table. skip and limit are left to the server defaults when they are
// negative.
//
// The operation corresponds to a GET request.
//
// Expects http.StatusOK as response, otherwise it will
// flag an error. Returns the actual http status code.
//
// result receives the data of the response envelope, it can be nil.
func (t Table) List(skip, limit int, result interface{}) (int, error) {
	var parameters []string
	if skip >= 0 {
		parameters = append(parameters, "skip="+strconv.Itoa(skip))
	}
	if limit >= 0 {
		parameters = append(parameters, "limit="+strconv.Itoa(limit))
	}
	path := t.Path()
	if len(parameters) > 0 {
		path += "?" + strings.Join(parameters, "&")
	}
	return t.client.RawGet(path, result)
}

// Get reads a single row
//
// Expects http.StatusOK as response, otherwise it will
// flag an error. Returns the actual http status code.
func (t Table) Get(id interface{}, result interface{}) (int, error) {
	return t.client.RawGet(t.ItemPath(id), result)
}

// Create creates a new row.
//
// The operation corresponds to a POST request.
//
// Expects http.StatusCreated as response, otherwise it will
// flag an error. Returns the actual http status code.
//
// body can also be a []byte, result can be nil.
func (t Table) Create(body interface{}, result interface{}) (int, error) {
	return t.client.RawPost(t.Path(), body, result)
}

// Update updates the supplied columns of a row.
//
// The operation corresponds to a PUT request.
//
// Expects http.StatusOK as response, otherwise it will
// flag an error. Returns the actual http status code.
//
// body can also be a []byte, result can be nil.
func (t Table) Update(id interface{}, body interface{}, result interface{}) (int, error) {
	return t.client.RawPut(t.ItemPath(id), body, result)
}

// Delete deletes a row
//
// Expects http.StatusOK as response, otherwise it will
// flag an error. Returns the actual http status code.
func (t Table) Delete(id interface{}) (int, error) {
	return t.client.RawDelete(t.ItemPath(id))
}

// Schema reads the reflected description of the table
func (t Table) Schema(result interface{}) (int, error) {
	return t.client.RawGet("/api/tables/"+url.PathEscape(t.name)+"/schema", result)
}

// Tables reads the names of all tables
func (c Client) Tables(result interface{}) (int, error) {
	return c.RawGet("/api/tables", result)
}

// RawGet gets the resource from path. Expects http.StatusOK as response, otherwise it will
// flag an error. Returns the actual http status code.
//
// result receives the data of the response envelope, or the entire body if it is a *[]byte
// or a *Response. result can be nil.
func (c Client) RawGet(path string, result interface{}) (int, error) {
	return c.do(http.MethodGet, path, nil, http.StatusOK, result)
}

// RawPost posts body to path. Expects http.StatusCreated as response, otherwise it will
// flag an error. Returns the actual http status code.
//
// body can also be a []byte.
func (c Client) RawPost(path string, body interface{}, result interface{}) (int, error) {
	return c.do(http.MethodPost, path, body, http.StatusCreated, result)
}

// RawPut puts body to path. Expects http.StatusOK as response, otherwise it will
// flag an error. Returns the actual http status code.
//
// body can also be a []byte.
func (c Client) RawPut(path string, body interface{}, result interface{}) (int, error) {
	return c.do(http.MethodPut, path, body, http.StatusOK, result)
}

// RawDelete deletes the resource at path. Expects http.StatusOK as response, otherwise it will
// flag an error. Returns the actual http status code.
func (c Client) RawDelete(path string) (int, error) {
	return c.do(http.MethodDelete, path, nil, http.StatusOK, nil)
}

func (c Client) do(method, path string, body interface{}, expected int, result interface{}) (int, error) {
	var reader io.Reader
	if body != nil {
		j, ok := body.([]byte)
		if !ok {
			var err error
			j, err = json.Marshal(body)
			if err != nil {
				return http.StatusBadRequest, err
			}
		}
		reader = bytes.NewReader(j)
	}

	r, err := http.NewRequestWithContext(c.Context(), method, c.url+path, reader)
	if err != nil {
		return http.StatusBadRequest, err
	}
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	for key, value := range c.defaultHeaders {
		r.Header.Add(key, value)
	}

	var res *http.Response
	var resBody []byte
	if c.router != nil {
		rec := httptest.NewRecorder()
		c.router.ServeHTTP(rec, r)
		res = rec.Result()
		resBody = rec.Body.Bytes()
	} else {
		res, err = c.httpClient.Do(r)
		if err != nil {
			return http.StatusInternalServerError, err
		}
		defer res.Body.Close()
		resBody, _ = io.ReadAll(res.Body)
	}
	status := res.StatusCode

	if raw, ok := result.(*[]byte); ok {
		*raw = resBody
		result = nil
	}

	var response Response
	if len(resBody) > 0 {
		if err := json.Unmarshal(resBody, &response); err != nil {
			return status, fmt.Errorf("cannot decode response with status %v: %w. Body: %s",
				status, err, strings.TrimSpace(string(resBody)))
		}
	}
	if full, ok := result.(*Response); ok {
		*full = response
		result = nil
	}

	if status != expected {
		return status, fmt.Errorf("handler returned wrong status code: got %v want %v. Error: %s",
			status, expected, response.Error)
	}

	if result != nil && len(response.Data) > 0 {
		err = json.Unmarshal(response.Data, result)
	}
	return status, err
}
