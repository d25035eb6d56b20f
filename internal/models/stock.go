package models

// LowStockThreshold is the first quantity considered fully in stock.
const LowStockThreshold = 5

// StockStatus classifies a product quantity.
type StockStatus string

const (
	StockOut StockStatus = "out-of-stock"
	StockLow StockStatus = "low-stock"
	StockIn  StockStatus = "in-stock"
)

// StockStatusOf classifies quantity: <= 0 is out of stock, below
// LowStockThreshold is low stock, anything else is in stock.
func StockStatusOf(quantity int) StockStatus {
	switch {
	case quantity <= 0:
		return StockOut
	case quantity < LowStockThreshold:
		return StockLow
	default:
		return StockIn
	}
}

// Label is the human readable form used by the views.
func (s StockStatus) Label() string {
	switch s {
	case StockOut:
		return "Out of stock"
	case StockLow:
		return "Low stock"
	default:
		return "In stock"
	}
}
