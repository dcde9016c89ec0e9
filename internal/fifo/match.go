package fifo

import "github.com/shopspring/decimal"

// MatchBatches walks stock-out demands against stock-in batches first in,
// first out and returns one usage per demand in input order.
//
// A single cursor runs over the batches for the whole call: an exhausted batch
// is never revisited by a later demand. Batch remainders live in a slice owned
// by this call, so stockIn is left untouched and may be reused.
func MatchBatches(stockIn []StockInRecord, stockOut []StockOutRecord) []OutgoingUsage {
	remaining := make([]decimal.Decimal, len(stockIn))
	for i, batch := range stockIn {
		remaining[i] = batch.Quantity
	}

	usages := make([]OutgoingUsage, 0, len(stockOut))
	cursor := 0
	for _, out := range stockOut {
		usage := OutgoingUsage{
			OutTime:                   out.Timestamp,
			ProductID:                 out.ProductID,
			SourceID:                  out.SourceID,
			TotalQuantity:             out.Quantity,
			UnitPrice:                 out.UnitPrice,
			CostParts:                 []CostPart{},
			OrderNumber:               out.OrderNumber,
			OrderID:                   out.OrderID,
			OrderType:                 out.OrderType,
			RemainingNegativeQuantity: decimal.Zero,
		}
		need := out.Quantity
		for need.IsPositive() {
			if cursor >= len(stockIn) {
				usage.HasNegativeInventory = true
				usage.RemainingNegativeQuantity = need
				break
			}
			batch := stockIn[cursor]
			if remaining[cursor].IsPositive() {
				draw := decimal.Min(remaining[cursor], need)
				usage.CostParts = append(usage.CostParts, CostPart{
					BatchTime:   batch.Timestamp,
					UnitPrice:   batch.UnitCost,
					Quantity:    draw,
					SourceID:    batch.SourceID,
					OrderNumber: batch.OrderNumber,
					OrderID:     batch.OrderID,
					OrderType:   batch.OrderType,
				})
				remaining[cursor] = remaining[cursor].Sub(draw)
				need = need.Sub(draw)
			}
			if !remaining[cursor].IsPositive() {
				cursor++
			}
		}
		usages = append(usages, usage)
	}
	return usages
}
