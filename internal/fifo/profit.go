package fifo

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

type saleKey struct {
	productID string
	millis    int64
}

type saleIndex struct {
	bySource map[string]SaleRecord
	byTime   map[saleKey]SaleRecord
}

func indexSales(sales []SaleRecord) saleIndex {
	idx := saleIndex{
		bySource: make(map[string]SaleRecord, len(sales)),
		byTime:   make(map[saleKey]SaleRecord, len(sales)),
	}
	for _, sale := range sales {
		if sale.SourceID != "" {
			if _, ok := idx.bySource[sale.SourceID]; !ok {
				idx.bySource[sale.SourceID] = sale
			}
		}
		key := saleKey{productID: sale.ProductID, millis: sale.Timestamp.UnixMilli()}
		if _, ok := idx.byTime[key]; !ok {
			idx.byTime[key] = sale
		}
	}
	return idx
}

func (idx saleIndex) lookup(usage OutgoingUsage) (SaleRecord, bool) {
	if usage.SourceID != "" {
		if sale, ok := idx.bySource[usage.SourceID]; ok {
			return sale, true
		}
	}
	sale, ok := idx.byTime[saleKey{productID: usage.ProductID, millis: usage.OutTime.UnixMilli()}]
	if ok && sale.SourceID != "" && usage.SourceID != "" && sale.SourceID != usage.SourceID {
		return SaleRecord{}, false
	}
	return sale, ok
}

// CalculateProfitMargins prices each usage with its sale record. Usages
// without a sale record produce no result.
//
// Cost, revenue and profit are rounded to CurrencyScale.
//
// When a usage could not be fully matched to batches, the unmatched quantity
// is costed at its own revenue, gross profit is reported as zero and the
// result is marked pending until purchases are recorded and the product is
// recalculated.
func CalculateProfitMargins(usages []OutgoingUsage, sales []SaleRecord) []ProfitMarginResult {
	idx := indexSales(sales)
	results := make([]ProfitMarginResult, 0, len(usages))
	for _, usage := range usages {
		sale, ok := idx.lookup(usage)
		if !ok {
			continue
		}
		revenue := roundMoney(sale.RevenueFor(usage.TotalQuantity))
		cost := decimal.Zero
		for _, part := range usage.CostParts {
			cost = cost.Add(part.Cost())
		}
		result := ProfitMarginResult{
			OutTime:                   usage.OutTime,
			ProductID:                 usage.ProductID,
			SourceID:                  usage.SourceID,
			OrderNumber:               usage.OrderNumber,
			OrderID:                   usage.OrderID,
			OrderType:                 usage.OrderType,
			TotalQuantity:             usage.TotalQuantity,
			UnitPrice:                 sale.UnitPrice,
			TotalRevenue:              revenue,
			CostBreakdown:             usage.CostParts,
			HasNegativeInventory:      usage.HasNegativeInventory,
			RemainingNegativeQuantity: usage.RemainingNegativeQuantity,
		}
		if usage.HasNegativeInventory {
			unmatched := sale.RevenueFor(usage.RemainingNegativeQuantity)
			result.TotalCost = roundMoney(cost.Add(unmatched))
			result.GrossProfit = decimal.Zero
			result.ProfitMargin = formatMargin(decimal.Zero, decimal.Zero)
			result.PendingProfitCalculation = true
		} else {
			result.TotalCost = roundMoney(cost)
			result.GrossProfit = revenue.Sub(result.TotalCost)
			result.ProfitMargin = formatMargin(result.GrossProfit, revenue)
		}
		results = append(results, result)
	}
	return results
}

// NoStockMargins scores no-stock records directly from their recorded
// selling and cost prices.
func NoStockMargins(records []NoStockRecord) []ProfitMarginResult {
	results := make([]ProfitMarginResult, 0, len(records))
	for _, rec := range records {
		revenue := roundMoney(rec.UnitPrice.Mul(rec.Quantity))
		cost := roundMoney(rec.CostPrice.Mul(rec.Quantity))
		profit := revenue.Sub(cost)
		results = append(results, ProfitMarginResult{
			OutTime:                   rec.Timestamp,
			ProductID:                 rec.ProductID,
			SourceID:                  rec.SourceID,
			OrderNumber:               rec.OrderNumber,
			OrderID:                   rec.OrderID,
			OrderType:                 rec.OrderType,
			TotalQuantity:             rec.Quantity,
			UnitPrice:                 rec.UnitPrice,
			TotalCost:                 cost,
			TotalRevenue:              revenue,
			GrossProfit:               profit,
			ProfitMargin:              formatMargin(profit, revenue),
			CostBreakdown:             []CostPart{},
			RemainingNegativeQuantity: decimal.Zero,
			IsNoStockSale:             true,
		})
	}
	return results
}

// Summarize folds profit results into totals and an average margin.
func Summarize(results []ProfitMarginResult) Summary {
	summary := ZeroSummary()
	for _, r := range results {
		summary.TotalCost = summary.TotalCost.Add(r.TotalCost)
		summary.TotalRevenue = summary.TotalRevenue.Add(r.TotalRevenue)
		summary.TotalProfit = summary.TotalProfit.Add(r.GrossProfit)
	}
	summary.AverageProfitMargin = formatMargin(summary.TotalProfit, summary.TotalRevenue)
	return summary
}

func roundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(CurrencyScale)
}

// formatMargin renders profit/revenue as a percentage with two decimals.
func formatMargin(profit, revenue decimal.Decimal) string {
	if revenue.IsZero() {
		return "0.00%"
	}
	return profit.Div(revenue).Mul(hundred).StringFixed(2) + "%"
}
