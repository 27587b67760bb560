package catalog

import "fmt"

// NotFoundError indicates a column ID is absent from the catalog.
type NotFoundError struct {
	ColumnID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("column not found: %s", e.ColumnID)
}
