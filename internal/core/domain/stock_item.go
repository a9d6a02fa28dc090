package domain

type ItemStatus string

const (
	ItemStatusAvailable ItemStatus = "available"
	ItemStatusAssigned  ItemStatus = "assigned"
)

// StockItem is a countable item owned by a department. Status records the
// last accepted transition, quantity is the real availability gate.
type StockItem struct {
	ID           int64
	Name         string
	Quantity     int
	DepartmentID int64
	Status       ItemStatus
	Version      int64 // optimistic locking
}

// Assign applies an accepted assignment. Callers check Quantity first.
func (i *StockItem) Assign() {
	i.Quantity--
	i.Status = ItemStatusAssigned
}

// Return applies a return. There is no upper bound on Quantity.
func (i *StockItem) Return() {
	i.Quantity++
	i.Status = ItemStatusAvailable
}

func (i StockItem) InStock() bool {
	return i.Quantity > 0
}
