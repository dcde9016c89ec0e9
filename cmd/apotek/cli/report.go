package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/apotek-pos/apotek/internal/fifo"
)

// ReportService is the subset of fifo.Service used by the report commands.
type ReportService interface {
	ProductReport(ctx context.Context, productID string) (fifo.CalculationResult, error)
	SaleReport(ctx context.Context, saleID string) (fifo.OrderReport, error)
	ShippingOrderReport(ctx context.Context, shippingOrderID string) (fifo.OrderReport, error)
	StorewideReport(ctx context.Context) (fifo.StorewideReport, error)
	Simulate(rows []fifo.LedgerRow) fifo.CalculationResult
}

// ReportKind selects which report a command prints.
type ReportKind string

const (
	ReportProduct       ReportKind = "product"
	ReportSale          ReportKind = "sale"
	ReportShippingOrder ReportKind = "shipping-order"
	ReportStorewide     ReportKind = "all"
)

// ExitPending is returned when a report contains sales whose profit waits
// for purchase rows.
const ExitPending = 10

// ReportCLI prints FIFO reports for operators.
type ReportCLI struct {
	svc ReportService
}

// NewReportCLI constructs the helper.
func NewReportCLI(svc ReportService) (*ReportCLI, error) {
	if svc == nil {
		return nil, errors.New("report cli: service required")
	}
	return &ReportCLI{svc: svc}, nil
}

// ReportOptions defines available flags for the report commands.
type ReportOptions struct {
	Kind       ReportKind
	ID         string
	JSONOutput bool
	Language   string
	Stdout     io.Writer
	Stderr     io.Writer
}

// SimulateOptions defines available flags for the simulate command.
type SimulateOptions struct {
	Path       string
	Input      io.Reader
	JSONOutput bool
	Language   string
	Stdout     io.Writer
	Stderr     io.Writer
}

// ReportCommand loads the requested report and prints it.
func (c *ReportCLI) ReportCommand(ctx context.Context, opts ReportOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	name := string(opts.Kind)
	if opts.Kind != ReportStorewide && strings.TrimSpace(opts.ID) == "" {
		_, _ = fmt.Fprintf(opts.Stderr, "%s: --id is required\n", name)
		return 1
	}
	printer := newPrinter(opts.Language)

	var (
		payload any
		pending bool
		failed  bool
	)
	switch opts.Kind {
	case ReportProduct:
		result, err := c.svc.ProductReport(ctx, opts.ID)
		if err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "%s: %v\n", name, err)
			return 1
		}
		payload, pending, failed = result, result.PendingProfitCalculation, !result.Success
		if !opts.JSONOutput {
			renderResultHuman(opts.Stdout, printer, "Product "+opts.ID, result)
		}
	case ReportSale, ReportShippingOrder:
		var (
			report fifo.OrderReport
			err    error
		)
		if opts.Kind == ReportSale {
			report, err = c.svc.SaleReport(ctx, opts.ID)
		} else {
			report, err = c.svc.ShippingOrderReport(ctx, opts.ID)
		}
		if err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "%s: %v\n", name, err)
			return 1
		}
		payload = report
		for _, product := range report.Products {
			pending = pending || product.Result.PendingProfitCalculation
			failed = failed || !product.Result.Success
		}
		if !opts.JSONOutput {
			renderOrderHuman(opts.Stdout, printer, report)
		}
	case ReportStorewide:
		report, err := c.svc.StorewideReport(ctx)
		if err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "%s: %v\n", name, err)
			return 1
		}
		payload, pending, failed = report, len(report.PendingProducts) > 0, len(report.FailedProducts) > 0
		if !opts.JSONOutput {
			renderStorewideHuman(opts.Stdout, printer, report)
		}
	default:
		_, _ = fmt.Fprintf(opts.Stderr, "report: unsupported kind %q\n", opts.Kind)
		return 1
	}

	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(payload); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "%s: encode json: %v\n", name, err)
			return 1
		}
	}
	return exitCode(failed, pending)
}

// SimulateCommand runs the engine over a JSON array of ledger rows.
func (c *ReportCLI) SimulateCommand(opts SimulateOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	rows, err := readLedgerRows(opts)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "simulate: %v\n", err)
		return 1
	}
	result := c.svc.Simulate(rows)
	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(result); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "simulate: encode json: %v\n", err)
			return 1
		}
	} else {
		renderResultHuman(opts.Stdout, newPrinter(opts.Language), "Simulation", result)
	}
	return exitCode(!result.Success, result.PendingProfitCalculation)
}

func readLedgerRows(opts SimulateOptions) ([]fifo.LedgerRow, error) {
	in := opts.Input
	if in == nil {
		switch opts.Path {
		case "":
			return nil, errors.New("--file is required")
		case "-":
			in = os.Stdin
		default:
			f, err := os.Open(opts.Path)
			if err != nil {
				return nil, err
			}
			defer f.Close()
			in = f
		}
	}
	dec := json.NewDecoder(in)
	dec.DisallowUnknownFields()
	var rows []fifo.LedgerRow
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode ledger rows: %w", err)
	}
	if rows == nil {
		return nil, errors.New("expected a JSON array of ledger rows")
	}
	return rows, nil
}

func exitCode(failed, pending bool) int {
	switch {
	case failed:
		return 1
	case pending:
		return ExitPending
	default:
		return 0
	}
}

func newPrinter(lang string) *message.Printer {
	tag, err := language.Parse(lang)
	if err != nil || lang == "" {
		tag = language.Indonesian
	}
	return message.NewPrinter(tag)
}

func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

func renderResultHuman(out io.Writer, p *message.Printer, title string, result fifo.CalculationResult) {
	_, _ = fmt.Fprintf(out, "%s\n", title)
	if !result.Success {
		_, _ = fmt.Fprintf(out, "  calculation failed: %s\n", result.Error)
		return
	}
	label := cases.Title(language.English)
	lines := append(append([]fifo.ProfitMarginResult{}, result.ProfitMargins...), result.NoStockMargins...)
	if len(lines) == 0 {
		_, _ = fmt.Fprintln(out, "  no sales or shipments")
	}
	for _, m := range lines {
		flags := ""
		if m.PendingProfitCalculation {
			flags += " [pending]"
		}
		if m.IsNoStockSale {
			flags += " [no-stock]"
		}
		_, _ = p.Fprintf(out, "  %s %-16s %s qty %v  cost %.2f  revenue %.2f  profit %.2f  margin %s%s\n",
			m.OutTime.Format("2006-01-02 15:04"),
			m.OrderNumber,
			label.String(string(m.OrderType)),
			m.TotalQuantity.InexactFloat64(),
			money(m.TotalCost), money(m.TotalRevenue), money(m.GrossProfit),
			m.ProfitMargin, flags)
	}
	if result.Summary != nil {
		renderSummary(out, p, *result.Summary)
	}
	if result.HasNegativeInventory {
		_, _ = fmt.Fprintln(out, "  warning: stock left before the first purchase was recorded")
	}
}

func renderSummary(out io.Writer, p *message.Printer, s fifo.Summary) {
	_, _ = p.Fprintf(out, "  total cost %.2f  revenue %.2f  profit %.2f  average margin %s\n",
		money(s.TotalCost), money(s.TotalRevenue), money(s.TotalProfit), s.AverageProfitMargin)
}

func renderOrderHuman(out io.Writer, p *message.Printer, report fifo.OrderReport) {
	_, _ = fmt.Fprintf(out, "%s %s\n", cases.Title(language.English).String(string(report.OrderType)), report.OrderID)
	for _, product := range report.Products {
		renderResultHuman(out, p, "Product "+product.ProductID, product.Result)
	}
	_, _ = fmt.Fprintln(out, "Order total")
	renderSummary(out, p, report.Summary)
}

func renderStorewideHuman(out io.Writer, p *message.Printer, report fifo.StorewideReport) {
	_, _ = p.Fprintf(out, "Storewide FIFO report (%d products)\n", len(report.Products))
	renderSummary(out, p, report.Summary)
	if len(report.NegativeInventoryProducts) > 0 {
		_, _ = fmt.Fprintf(out, "  sold before purchased: %s\n", strings.Join(report.NegativeInventoryProducts, ", "))
	}
	if len(report.PendingProducts) > 0 {
		_, _ = fmt.Fprintf(out, "  pending profit: %s\n", strings.Join(report.PendingProducts, ", "))
	}
	for id, msg := range report.FailedProducts {
		_, _ = fmt.Fprintf(out, "  failed %s: %s\n", id, msg)
	}
}
