package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/apotek-pos/apotek/internal/fifo"
	_ "github.com/apotek-pos/apotek/testing"
)

type stubReportService struct {
	product   fifo.CalculationResult
	order     fifo.OrderReport
	storewide fifo.StorewideReport
	err       error
	lastID    string
	simulated []fifo.LedgerRow
}

func (s *stubReportService) ProductReport(ctx context.Context, productID string) (fifo.CalculationResult, error) {
	s.lastID = productID
	return s.product, s.err
}

func (s *stubReportService) SaleReport(ctx context.Context, saleID string) (fifo.OrderReport, error) {
	s.lastID = saleID
	return s.order, s.err
}

func (s *stubReportService) ShippingOrderReport(ctx context.Context, shippingOrderID string) (fifo.OrderReport, error) {
	s.lastID = shippingOrderID
	return s.order, s.err
}

func (s *stubReportService) StorewideReport(ctx context.Context) (fifo.StorewideReport, error) {
	return s.storewide, s.err
}

func (s *stubReportService) Simulate(rows []fifo.LedgerRow) fifo.CalculationResult {
	s.simulated = rows
	return fifo.CalculateProductFIFO(rows)
}

func settledResult() fifo.CalculationResult {
	summary := fifo.Summary{
		TotalCost:           decimal.NewFromInt(740),
		TotalRevenue:        decimal.NewFromInt(1050),
		TotalProfit:         decimal.NewFromInt(310),
		AverageProfitMargin: "29.52%",
	}
	return fifo.CalculationResult{
		Success:       true,
		FIFOMatches:   []fifo.OutgoingUsage{},
		ProfitMargins: []fifo.ProfitMarginResult{},
		Summary:       &summary,
	}
}

func TestReportCommandProductJSON(t *testing.T) {
	svc := &stubReportService{product: settledResult()}
	cli, err := NewReportCLI(svc)
	require.NoError(t, err)

	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	code := cli.ReportCommand(context.Background(), ReportOptions{
		Kind:       ReportProduct,
		ID:         "amoxicillin-500",
		JSONOutput: true,
		Stdout:     stdout,
		Stderr:     stderr,
	})
	require.Zero(t, code)
	require.Empty(t, stderr.String())
	require.Equal(t, "amoxicillin-500", svc.lastID)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &decoded))
	require.Equal(t, true, decoded["success"])
	require.Contains(t, decoded, "fifoMatches")
	require.Contains(t, decoded, "profitMargins")
}

func TestReportCommandPendingExitCode(t *testing.T) {
	result := settledResult()
	result.PendingProfitCalculation = true
	cli, err := NewReportCLI(&stubReportService{product: result})
	require.NoError(t, err)

	stdout := new(bytes.Buffer)
	code := cli.ReportCommand(context.Background(), ReportOptions{
		Kind:     ReportProduct,
		ID:       "paracetamol",
		Language: "en",
		Stdout:   stdout,
		Stderr:   new(bytes.Buffer),
	})
	require.Equal(t, ExitPending, code)
	require.Contains(t, stdout.String(), "Product paracetamol")
	require.Contains(t, stdout.String(), "29.52%")
}

func TestReportCommandRequiresID(t *testing.T) {
	cli, err := NewReportCLI(&stubReportService{})
	require.NoError(t, err)

	stderr := new(bytes.Buffer)
	code := cli.ReportCommand(context.Background(), ReportOptions{Kind: ReportSale, Stdout: new(bytes.Buffer), Stderr: stderr})
	require.Equal(t, 1, code)
	require.Contains(t, stderr.String(), "--id is required")
}

func TestReportCommandServiceError(t *testing.T) {
	cli, err := NewReportCLI(&stubReportService{err: fifo.ErrOrderNotFound})
	require.NoError(t, err)

	stderr := new(bytes.Buffer)
	code := cli.ReportCommand(context.Background(), ReportOptions{
		Kind:   ReportShippingOrder,
		ID:     "so-404",
		Stdout: new(bytes.Buffer),
		Stderr: stderr,
	})
	require.Equal(t, 1, code)
	require.Contains(t, stderr.String(), fifo.ErrOrderNotFound.Error())
}

func TestReportCommandStorewide(t *testing.T) {
	svc := &stubReportService{storewide: fifo.StorewideReport{
		Products:                  []fifo.ProductReport{{ProductID: "amoxicillin-500", Result: settledResult()}},
		Summary:                   *settledResult().Summary,
		NegativeInventoryProducts: []string{"ibuprofen"},
		PendingProducts:           []string{},
		FailedProducts:            map[string]string{},
	}}
	cli, err := NewReportCLI(svc)
	require.NoError(t, err)

	stdout := new(bytes.Buffer)
	code := cli.ReportCommand(context.Background(), ReportOptions{Kind: ReportStorewide, Language: "en", Stdout: stdout, Stderr: new(bytes.Buffer)})
	require.Zero(t, code)
	require.Contains(t, stdout.String(), "Storewide FIFO report (1 products)")
	require.Contains(t, stdout.String(), "sold before purchased: ibuprofen")
}

func TestSimulateCommandFromFile(t *testing.T) {
	rows := `[
  {"productId":"amoxicillin-500","quantity":100,"totalAmount":"1000","type":"purchase","timestamp":"2024-03-01T09:00:00Z","purchaseOrderNumber":"PO-1"},
  {"productId":"amoxicillin-500","quantity":-20,"totalAmount":300,"type":"sale","timestamp":"2024-03-01T10:00:00Z","saleNumber":"INV-1","saleId":"sale-1"}
]`
	path := filepath.Join(t.TempDir(), "ledger.json")
	require.NoError(t, os.WriteFile(path, []byte(rows), 0o600))

	svc := &stubReportService{}
	cli, err := NewReportCLI(svc)
	require.NoError(t, err)

	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	code := cli.SimulateCommand(SimulateOptions{Path: path, JSONOutput: true, Stdout: stdout, Stderr: stderr})
	require.Zero(t, code, stderr.String())
	require.Len(t, svc.simulated, 2)

	var result fifo.CalculationResult
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &result))
	require.True(t, result.Success)
	require.Len(t, result.ProfitMargins, 1)
	require.True(t, decimal.NewFromInt(100).Equal(result.Summary.TotalProfit))
	require.Equal(t, "33.33%", result.Summary.AverageProfitMargin)
}

func TestSimulateCommandRejectsBadInput(t *testing.T) {
	cli, err := NewReportCLI(&stubReportService{})
	require.NoError(t, err)

	cases := map[string]string{
		"not an array":  `{"productId":"x"}`,
		"unknown field": `[{"productId":"x","colour":"red"}]`,
		"null":          `null`,
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			stderr := new(bytes.Buffer)
			code := cli.SimulateCommand(SimulateOptions{Input: strings.NewReader(input), Stdout: new(bytes.Buffer), Stderr: stderr})
			require.Equal(t, 1, code)
			require.True(t, strings.HasPrefix(stderr.String(), "simulate: "))
		})
	}

	stderr := new(bytes.Buffer)
	require.Equal(t, 1, cli.SimulateCommand(SimulateOptions{Stdout: new(bytes.Buffer), Stderr: stderr}))
	require.Contains(t, stderr.String(), "--file is required")
}

func TestNewReportCLIRequiresService(t *testing.T) {
	_, err := NewReportCLI(nil)
	require.Error(t, err)
}
