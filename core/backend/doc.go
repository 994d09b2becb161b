/*
Package backend implements the table REST backend

A backend reflects the tables of a relational database at startup and provides a
generic RESTful-API for all of them. There is no configuration of resources, every
reflected table gets the same set of routes.

Routes

	GET    /                            status, version and table names
	GET    /version                     version of the build
	GET    /api/tables                  names of all tables
	GET    /api/tables/{table}/schema   reflected columns, keys and foreign keys
	GET    /api/{table}?skip=&limit=    a page of rows, ordered by primary key
	POST   /api/{table}                 create a row
	GET    /api/{table}/{id}            read a row
	PUT    /api/{table}/{id}            update the supplied columns of a row
	DELETE /api/{table}/{id}            delete a row

Item routes need a table with exactly one primary key column, the designated key. Tables
with a composite or no primary key can be listed and written to, but not addressed by id.

The name "tables" is reserved, a database table with that name is reachable only through
the dispatcher.

Responses

Every response is an envelope:

	{"success": true, "message": "Record created", "data": {"ProductID": 78, "ProductName": "Widget"}}
	{"success": false, "message": "not found", "error": "Record with ProductID=78 not found in 'products'"}

Creating answers with 201, any other success with 200. Failures answer 400 for invalid
input, 404 for unknown tables or rows, 409 for constraint violations and 503 if the
database is not reachable. Internal errors carry no details, they are logged with the
request id instead.

List requests default to 10 rows, limits above 100 are clamped. Both are configurable
in the Builder.
*/
package backend
