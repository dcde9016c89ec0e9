package fifo

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// MovementType enumerates the ledger row variants recorded by the store.
type MovementType string

const (
	// MovementPurchase represents a purchase invoice line (stock in).
	MovementPurchase MovementType = "purchase"
	// MovementSale represents a counter sale (stock out).
	MovementSale MovementType = "sale"
	// MovementShip represents a shipping order line (stock out).
	MovementShip MovementType = "ship"
	// MovementReturn is recorded by the ledger layer but ignored by FIFO.
	MovementReturn MovementType = "return"
	// MovementAdjustment is recorded by the ledger layer but ignored by FIFO.
	MovementAdjustment MovementType = "adjustment"
	// MovementSaleNoStock is a sale of an item excluded from stock tracking.
	MovementSaleNoStock MovementType = "sale-no-stock"
	// MovementShipNoStock is a shipment of an item excluded from stock tracking.
	MovementShipNoStock MovementType = "ship-no-stock"
)

// IsNoStock reports whether the movement bypasses inventory.
func (t MovementType) IsNoStock() bool {
	return t == MovementSaleNoStock || t == MovementShipNoStock
}

// OrderType identifies the business document behind a record.
type OrderType string

const (
	OrderTypePurchase OrderType = "purchase"
	OrderTypeSale     OrderType = "sale"
	OrderTypeShipping OrderType = "shipping"
)

// CurrencyScale is the number of decimal places money figures are reported
// with, matching the NUMERIC(18,2) ledger columns.
const CurrencyScale int32 = 2

// UnknownOrderNumber is used when a row carries no document number.
const UnknownOrderNumber = "UNKNOWN-ORDER"

// LedgerRow is one inventory movement as stored by the ledger layer.
// Quantity is signed: positive for inflows, negative for outflows.
type LedgerRow struct {
	ID          string          `json:"id"`
	ProductID   string          `json:"productId" validate:"required"`
	Quantity    decimal.Decimal `json:"quantity"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Type        MovementType    `json:"type" validate:"required,oneof=purchase sale ship return adjustment sale-no-stock ship-no-stock"`
	Timestamp   time.Time       `json:"timestamp" validate:"required"`

	PurchaseOrderNumber string `json:"purchaseOrderNumber,omitempty"`
	PurchaseOrderID     string `json:"purchaseOrderId,omitempty"`
	SaleNumber          string `json:"saleNumber,omitempty"`
	SaleID              string `json:"saleId,omitempty"`
	ShippingOrderNumber string `json:"shippingOrderNumber,omitempty"`
	ShippingOrderID     string `json:"shippingOrderId,omitempty"`

	// Recorded on no-stock rows only.
	CostPrice   *decimal.Decimal `json:"costPrice,omitempty"`
	UnitPrice   *decimal.Decimal `json:"unitPrice,omitempty"`
	GrossProfit *decimal.Decimal `json:"grossProfit,omitempty"`
}

// StockInRecord is a purchase batch available for consumption.
type StockInRecord struct {
	Timestamp   time.Time       `json:"timestamp"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitCost    decimal.Decimal `json:"unitCost"`
	ProductID   string          `json:"productId"`
	SourceID    string          `json:"sourceId"`
	OrderNumber string          `json:"orderNumber"`
	OrderID     string          `json:"orderId,omitempty"`
	OrderType   OrderType       `json:"orderType"`
}

// StockOutRecord is a demand event drawing from purchase batches.
type StockOutRecord struct {
	Timestamp   time.Time       `json:"timestamp"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	ProductID   string          `json:"productId"`
	SourceID    string          `json:"sourceId"`
	Type        MovementType    `json:"type"`
	OrderNumber string          `json:"orderNumber"`
	OrderID     string          `json:"orderId,omitempty"`
	OrderType   OrderType       `json:"orderType"`
}

// NoStockRecord is a sale or shipment excluded from inventory tracking.
type NoStockRecord struct {
	Timestamp   time.Time       `json:"timestamp"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	CostPrice   decimal.Decimal `json:"costPrice"`
	ProductID   string          `json:"productId"`
	SourceID    string          `json:"sourceId"`
	Type        MovementType    `json:"type"`
	OrderNumber string          `json:"orderNumber"`
	OrderID     string          `json:"orderId,omitempty"`
	OrderType   OrderType       `json:"orderType"`
}

// Ledger is the normalized view of one product's rows.
type Ledger struct {
	StockIn  []StockInRecord  `json:"stockIn"`
	StockOut []StockOutRecord `json:"stockOut"`
	NoStock  []NoStockRecord  `json:"noStock"`
}

// CostPart is the slice of a stock out funded by a single batch.
type CostPart struct {
	BatchTime   time.Time       `json:"batchTime"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Quantity    decimal.Decimal `json:"quantity"`
	SourceID    string          `json:"sourceId"`
	OrderNumber string          `json:"orderNumber"`
	OrderID     string          `json:"orderId,omitempty"`
	OrderType   OrderType       `json:"orderType"`
}

// Cost returns unit price times quantity.
func (p CostPart) Cost() decimal.Decimal {
	return p.UnitPrice.Mul(p.Quantity)
}

// OutgoingUsage is the FIFO match for one stock out event.
type OutgoingUsage struct {
	OutTime                   time.Time       `json:"outTime"`
	ProductID                 string          `json:"productId"`
	SourceID                  string          `json:"sourceId"`
	TotalQuantity             decimal.Decimal `json:"totalQuantity"`
	UnitPrice                 decimal.Decimal `json:"unitPrice"`
	CostParts                 []CostPart      `json:"costParts"`
	OrderNumber               string          `json:"orderNumber"`
	OrderID                   string          `json:"orderId,omitempty"`
	OrderType                 OrderType       `json:"orderType"`
	HasNegativeInventory      bool            `json:"hasNegativeInventory"`
	RemainingNegativeQuantity decimal.Decimal `json:"remainingNegativeQuantity"`
}

// MatchedQuantity sums the quantities of all cost parts.
func (u OutgoingUsage) MatchedQuantity() decimal.Decimal {
	total := decimal.Zero
	for _, part := range u.CostParts {
		total = total.Add(part.Quantity)
	}
	return total
}

// SaleRecord carries the recorded selling price of a stock out. Quantity and
// TotalAmount are the recorded row figures; when set, revenue for the full
// quantity is the recorded total rather than UnitPrice times Quantity.
type SaleRecord struct {
	ProductID   string          `json:"productId"`
	SourceID    string          `json:"sourceId"`
	Timestamp   time.Time       `json:"timestamp"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Quantity    decimal.Decimal `json:"quantity"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
}

// RevenueFor prices qty units of the sale. The full recorded quantity yields
// the recorded total exactly.
func (s SaleRecord) RevenueFor(qty decimal.Decimal) decimal.Decimal {
	if !s.Quantity.IsZero() && s.Quantity.Equal(qty) {
		return s.TotalAmount
	}
	return s.UnitPrice.Mul(qty)
}

// ProfitMarginResult joins a usage with its selling price.
type ProfitMarginResult struct {
	OutTime                   time.Time       `json:"outTime"`
	ProductID                 string          `json:"productId"`
	SourceID                  string          `json:"sourceId"`
	OrderNumber               string          `json:"orderNumber"`
	OrderID                   string          `json:"orderId,omitempty"`
	OrderType                 OrderType       `json:"orderType"`
	TotalQuantity             decimal.Decimal `json:"totalQuantity"`
	UnitPrice                 decimal.Decimal `json:"unitPrice"`
	TotalCost                 decimal.Decimal `json:"totalCost"`
	TotalRevenue              decimal.Decimal `json:"totalRevenue"`
	GrossProfit               decimal.Decimal `json:"grossProfit"`
	ProfitMargin              string          `json:"profitMargin"`
	CostBreakdown             []CostPart      `json:"costBreakdown"`
	HasNegativeInventory      bool            `json:"hasNegativeInventory"`
	RemainingNegativeQuantity decimal.Decimal `json:"remainingNegativeQuantity"`
	PendingProfitCalculation  bool            `json:"pendingProfitCalculation,omitempty"`
	IsNoStockSale             bool            `json:"isNoStockSale,omitempty"`
}

// Summary folds profit results of one calculation.
type Summary struct {
	TotalCost           decimal.Decimal `json:"totalCost"`
	TotalRevenue        decimal.Decimal `json:"totalRevenue"`
	TotalProfit         decimal.Decimal `json:"totalProfit"`
	AverageProfitMargin string          `json:"averageProfitMargin"`
}

// ZeroSummary returns a summary with every figure at zero.
func ZeroSummary() Summary {
	return Summary{
		TotalCost:           decimal.Zero,
		TotalRevenue:        decimal.Zero,
		TotalProfit:         decimal.Zero,
		AverageProfitMargin: formatMargin(decimal.Zero, decimal.Zero),
	}
}

// CalculationResult is the outcome of CalculateProductFIFO.
type CalculationResult struct {
	Success                  bool                 `json:"success"`
	FIFOMatches              []OutgoingUsage      `json:"fifoMatches"`
	ProfitMargins            []ProfitMarginResult `json:"profitMargins"`
	NoStockMargins           []ProfitMarginResult `json:"noStockMargins,omitempty"`
	Summary                  *Summary             `json:"summary,omitempty"`
	HasNegativeInventory     bool                 `json:"hasNegativeInventory"`
	PendingProfitCalculation bool                 `json:"pendingProfitCalculation"`
	Error                    string               `json:"error,omitempty"`
}

var (
	// ErrNilLedger indicates the orchestrator received no row slice at all.
	ErrNilLedger = errors.New("fifo: ledger rows required")
	// ErrInvalidRow wraps validation failures of a ledger row.
	ErrInvalidRow = errors.New("fifo: invalid ledger row")
	// ErrProductNotFound indicates a product without ledger rows.
	ErrProductNotFound = errors.New("fifo: product has no ledger rows")
	// ErrOrderNotFound indicates a sale or shipping order without ledger rows.
	ErrOrderNotFound = errors.New("fifo: order has no ledger rows")
)
