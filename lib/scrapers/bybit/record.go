package bybit

import "time"

// Platform tags every record shipped to the accounting backend with
// its source site.
const Platform = "bybit"

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

type Status string

const (
	StatusFilled   Status = "filled"
	StatusCanceled Status = "canceled"
	StatusPending  Status = "pending"
	StatusAppealed Status = "appealed"
)

// OrderRecord is one extracted trade, in the shape the accounting
// backend's POST /api/orders endpoint expects.
type OrderRecord struct {
	OrderID      string    `json:"order_id"`
	EmployeeID   string    `json:"employee_id"`
	Platform     string    `json:"platform"`
	AccountLabel string    `json:"account_name"`
	Symbol       string    `json:"symbol"`
	Side         Side      `json:"side"`
	Quantity     float64   `json:"quantity"`
	Price        float64   `json:"price"`
	Total        float64   `json:"total_usdt"`
	Fee          float64   `json:"fees_usdt"`
	Status       Status    `json:"status"`
	ExecutedAt   time.Time `json:"executed_at"`
}

// Deliverable reports whether the record carries the minimum fields
// required by the backend. Records failing this are discarded before
// they ever reach the ledger or the delivery pipeline.
func (r OrderRecord) Deliverable() bool {
	return r.OrderID != "" && r.Symbol != "" && r.Side != ""
}

// Attribution holds the settings-derived fields stamped onto a record
// at extraction time. They come from user configuration, never from
// the page.
type Attribution struct {
	EmployeeID   string
	AccountLabel string
}
