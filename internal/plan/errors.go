package plan

import (
	"fmt"
	"strings"
)

// InvalidProblemError reports structural or range violations in a planning
// problem. Violations lists every failing field, not just the first.
type InvalidProblemError struct {
	Violations []string
}

func (e *InvalidProblemError) Error() string {
	return "invalid planning problem: " + strings.Join(e.Violations, "; ")
}

// CostInputError flags a non-finite or out-of-range numeric input to the
// cost function. It indicates a caller bypassing upstream validation.
type CostInputError struct {
	Field string
	Value float64
}

func (e *CostInputError) Error() string {
	return fmt.Sprintf("invalid cost input: %s=%v", e.Field, e.Value)
}

// QuantityError flags a negative or non-finite quantity recorded against the
// fairness ledger.
type QuantityError struct {
	Value float64
}

func (e *QuantityError) Error() string {
	return fmt.Sprintf("invalid quantity: %v", e.Value)
}

// StockUnderflowError is an internal consistency failure: an allocation that
// would push a warehouse below its reserve floor despite the availability
// check. It is a defect in the planner, never a bad-input condition.
type StockUnderflowError struct {
	WarehouseID string
	ItemCode    string
}

func (e *StockUnderflowError) Error() string {
	return fmt.Sprintf("stock underflow: allocation would breach reserve floor for warehouse %s item %s", e.WarehouseID, e.ItemCode)
}
