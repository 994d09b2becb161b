// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package core

// Operation represents a table operation, one of Create, Read, Update, Delete, List
type Operation string

// all supported table operations
const (
	OperationCreate Operation = "create"
	OperationRead   Operation = "read"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
	OperationList   Operation = "list"
)

// Modifying returns true for operations which change the content of a table. Only
// those are notified.
func (o Operation) Modifying() bool {
	return o == OperationCreate || o == OperationUpdate || o == OperationDelete
}
