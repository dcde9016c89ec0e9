package fifo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/apotek-pos/apotek/internal/observability"
)

// LedgerReader abstracts repository usage for the service.
type LedgerReader interface {
	ListProductLedger(ctx context.Context, productID string) ([]LedgerRow, error)
	ListProductIDs(ctx context.Context) ([]string, error)
	ListOrderProducts(ctx context.Context, orderType OrderType, orderID string) ([]string, error)
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	ReportConcurrency int
}

// Service produces FIFO cost and profit reports from ledger snapshots.
type Service struct {
	repo        LedgerReader
	cache       *Cache
	metrics     *observability.FIFOMetrics
	logger      *slog.Logger
	concurrency int
}

// NewService builds Service. cache, metrics and logger may be nil.
func NewService(repo LedgerReader, cache *Cache, metrics *observability.FIFOMetrics, logger *slog.Logger, cfg ServiceConfig) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	concurrency := cfg.ReportConcurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Service{repo: repo, cache: cache, metrics: metrics, logger: logger, concurrency: concurrency}
}

// ProductReport is the calculation for a single product.
type ProductReport struct {
	ProductID string            `json:"productId"`
	Result    CalculationResult `json:"result"`
}

// OrderReport narrows product calculations to the lines of one document.
type OrderReport struct {
	OrderID   string          `json:"orderId"`
	OrderType OrderType       `json:"orderType"`
	Products  []ProductReport `json:"products"`
	Summary   Summary         `json:"summary"`
}

// StorewideReport aggregates every product with ledger rows.
type StorewideReport struct {
	Products                  []ProductReport   `json:"products"`
	Summary                   Summary           `json:"summary"`
	NegativeInventoryProducts []string          `json:"negativeInventoryProducts"`
	PendingProducts           []string          `json:"pendingProducts"`
	FailedProducts            map[string]string `json:"failedProducts"`
}

// RecalcOutcome reports a pending-profit recalculation pass.
type RecalcOutcome struct {
	Checked  int `json:"checked"`
	Resolved int `json:"resolved"`
	Pending  int `json:"pending"`
}

// errUncached keeps failed calculations out of the report cache.
var errUncached = errors.New("fifo: result not cacheable")

// ProductReport loads the ledger of a product and runs the engine over it.
func (s *Service) ProductReport(ctx context.Context, productID string) (CalculationResult, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return CalculationResult{}, errors.New("fifo: product id required")
	}

	var (
		result   CalculationResult
		computed *CalculationResult
		loadErr  error
	)
	key, err := s.cache.BuildKey(ctx, "fifo", "product", productID)
	if err == nil {
		err = s.cache.FetchJSON(ctx, key, &result, func(ctx context.Context) (any, error) {
			r, err := s.calculate(ctx, productID)
			if err != nil {
				loadErr = err
				return nil, err
			}
			computed = &r
			if !r.Success {
				return nil, errUncached
			}
			return r, nil
		})
	}
	if loadErr != nil {
		return CalculationResult{}, loadErr
	}
	if errors.Is(err, errUncached) {
		result, err = *computed, nil
	}
	if err != nil {
		s.logger.Warn("fifo cache unavailable", slog.String("product_id", productID), slog.Any("error", err))
		if computed == nil {
			r, err := s.calculate(ctx, productID)
			if err != nil {
				return CalculationResult{}, err
			}
			computed = &r
		}
		result = *computed
	}

	s.trackPending(ctx, productID, result)
	return result, nil
}

// SaleReport returns the FIFO lines and profit of one sale.
func (s *Service) SaleReport(ctx context.Context, saleID string) (OrderReport, error) {
	return s.orderReport(ctx, OrderTypeSale, saleID)
}

// ShippingOrderReport returns the FIFO lines and profit of one shipping order.
func (s *Service) ShippingOrderReport(ctx context.Context, shippingOrderID string) (OrderReport, error) {
	return s.orderReport(ctx, OrderTypeShipping, shippingOrderID)
}

func (s *Service) orderReport(ctx context.Context, orderType OrderType, orderID string) (OrderReport, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return OrderReport{}, errors.New("fifo: order id required")
	}
	productIDs, err := s.repo.ListOrderProducts(ctx, orderType, orderID)
	if err != nil {
		return OrderReport{}, err
	}
	if len(productIDs) == 0 {
		return OrderReport{}, fmt.Errorf("%w: %s %s", ErrOrderNotFound, orderType, orderID)
	}

	reports, err := s.productReports(ctx, productIDs)
	if err != nil {
		return OrderReport{}, err
	}
	report := OrderReport{OrderID: orderID, OrderType: orderType, Products: make([]ProductReport, 0, len(reports))}
	var lines []ProfitMarginResult
	for _, pr := range reports {
		filtered := filterOrder(pr.Result, orderType, orderID)
		lines = append(lines, filtered.ProfitMargins...)
		lines = append(lines, filtered.NoStockMargins...)
		report.Products = append(report.Products, ProductReport{ProductID: pr.ProductID, Result: filtered})
	}
	report.Summary = Summarize(lines)
	return report, nil
}

func filterOrder(result CalculationResult, orderType OrderType, orderID string) CalculationResult {
	if !result.Success {
		return result
	}
	out := CalculationResult{
		Success:              true,
		FIFOMatches:          []OutgoingUsage{},
		ProfitMargins:        []ProfitMarginResult{},
		HasNegativeInventory: result.HasNegativeInventory,
	}
	for _, u := range result.FIFOMatches {
		if u.OrderType == orderType && u.OrderID == orderID {
			out.FIFOMatches = append(out.FIFOMatches, u)
		}
	}
	for _, m := range result.ProfitMargins {
		if m.OrderType == orderType && m.OrderID == orderID {
			out.ProfitMargins = append(out.ProfitMargins, m)
			if m.PendingProfitCalculation {
				out.PendingProfitCalculation = true
			}
		}
	}
	for _, m := range result.NoStockMargins {
		if m.OrderType == orderType && m.OrderID == orderID {
			out.NoStockMargins = append(out.NoStockMargins, m)
		}
	}
	summary := Summarize(out.ProfitMargins)
	out.Summary = &summary
	return out
}

// StorewideReport computes every product in parallel and folds the results.
func (s *Service) StorewideReport(ctx context.Context) (StorewideReport, error) {
	productIDs, err := s.repo.ListProductIDs(ctx)
	if err != nil {
		return StorewideReport{}, err
	}
	reports, err := s.productReports(ctx, productIDs)
	if err != nil {
		return StorewideReport{}, err
	}

	out := StorewideReport{
		Products:                  reports,
		Summary:                   ZeroSummary(),
		NegativeInventoryProducts: []string{},
		PendingProducts:           []string{},
		FailedProducts:            map[string]string{},
	}
	for _, pr := range reports {
		if !pr.Result.Success {
			out.FailedProducts[pr.ProductID] = pr.Result.Error
			continue
		}
		if pr.Result.Summary != nil {
			out.Summary.TotalCost = out.Summary.TotalCost.Add(pr.Result.Summary.TotalCost)
			out.Summary.TotalRevenue = out.Summary.TotalRevenue.Add(pr.Result.Summary.TotalRevenue)
			out.Summary.TotalProfit = out.Summary.TotalProfit.Add(pr.Result.Summary.TotalProfit)
		}
		if pr.Result.HasNegativeInventory {
			out.NegativeInventoryProducts = append(out.NegativeInventoryProducts, pr.ProductID)
		}
		if pr.Result.PendingProfitCalculation {
			out.PendingProducts = append(out.PendingProducts, pr.ProductID)
		}
	}
	out.Summary.AverageProfitMargin = formatMargin(out.Summary.TotalProfit, out.Summary.TotalRevenue)
	return out, nil
}

// Simulate runs the engine over caller supplied rows without touching storage.
// Rows without an id receive a random one so sales join by source id.
func (s *Service) Simulate(rows []LedgerRow) CalculationResult {
	var input []LedgerRow
	if rows != nil {
		input = make([]LedgerRow, len(rows))
		copy(input, rows)
		for i := range input {
			if input[i].ID == "" {
				input[i].ID = uuid.NewString()
			}
		}
	}
	result := CalculateProductFIFO(input)
	s.metrics.ObserveCalculation(result.Success, result.HasNegativeInventory)
	return result
}

// RecalculatePending recomputes every product whose profit was deferred for
// negative inventory. Products whose ledger is now covered leave the pending set.
func (s *Service) RecalculatePending(ctx context.Context) (RecalcOutcome, error) {
	ids, err := s.cache.PendingProducts(ctx)
	if err != nil {
		return RecalcOutcome{}, fmt.Errorf("fifo: load pending products: %w", err)
	}
	if len(ids) == 0 {
		s.metrics.SetPendingProducts(0)
		return RecalcOutcome{}, nil
	}
	if err := s.cache.Bump(ctx); err != nil {
		return RecalcOutcome{}, fmt.Errorf("fifo: bump cache version: %w", err)
	}

	var resolved, pending atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			result, err := s.ProductReport(gctx, id)
			if errors.Is(err, ErrProductNotFound) {
				if err := s.cache.ClearPending(gctx, id); err != nil {
					return err
				}
				resolved.Add(1)
				return nil
			}
			if err != nil {
				return fmt.Errorf("fifo: recalculate %s: %w", id, err)
			}
			if result.PendingProfitCalculation {
				pending.Add(1)
			} else {
				resolved.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return RecalcOutcome{}, err
	}
	outcome := RecalcOutcome{Checked: len(ids), Resolved: int(resolved.Load()), Pending: int(pending.Load())}
	s.metrics.SetPendingProducts(outcome.Pending)
	s.logger.Info("fifo pending recalculation",
		slog.Int("checked", outcome.Checked),
		slog.Int("resolved", outcome.Resolved),
		slog.Int("pending", outcome.Pending))
	return outcome, nil
}

func (s *Service) productReports(ctx context.Context, productIDs []string) ([]ProductReport, error) {
	reports := make([]ProductReport, len(productIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, id := range productIDs {
		i, id := i, id
		g.Go(func() error {
			result, err := s.ProductReport(gctx, id)
			if err != nil {
				return fmt.Errorf("fifo: product %s: %w", id, err)
			}
			reports[i] = ProductReport{ProductID: id, Result: result}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

func (s *Service) calculate(ctx context.Context, productID string) (CalculationResult, error) {
	rows, err := s.repo.ListProductLedger(ctx, productID)
	if err != nil {
		return CalculationResult{}, err
	}
	if len(rows) == 0 {
		return CalculationResult{}, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}
	result := CalculateProductFIFO(rows)
	s.metrics.ObserveCalculation(result.Success, result.HasNegativeInventory)
	if !result.Success {
		s.logger.Warn("fifo calculation failed", slog.String("product_id", productID), slog.String("error", result.Error))
	}
	return result, nil
}

func (s *Service) trackPending(ctx context.Context, productID string, result CalculationResult) {
	var err error
	if result.PendingProfitCalculation {
		err = s.cache.MarkPending(ctx, productID)
	} else {
		err = s.cache.ClearPending(ctx, productID)
	}
	if err != nil {
		s.logger.Warn("fifo pending set update", slog.String("product_id", productID), slog.Any("error", err))
	}
}
