package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// FIFOMetrics records FIFO cost calculation outcomes.
type FIFOMetrics struct {
	calculations      *prometheus.CounterVec
	negativeInventory prometheus.Counter
	pendingProducts   prometheus.Gauge
}

var (
	defaultFIFOOnce    sync.Once
	defaultFIFOMetrics *FIFOMetrics
)

// NewFIFOMetrics registers the FIFO metrics. A nil registerer shares one set
// on the default registry.
func NewFIFOMetrics(registerer prometheus.Registerer) *FIFOMetrics {
	if registerer == nil {
		defaultFIFOOnce.Do(func() {
			defaultFIFOMetrics = buildFIFOMetrics(prometheus.DefaultRegisterer)
		})
		return defaultFIFOMetrics
	}
	return buildFIFOMetrics(registerer)
}

func buildFIFOMetrics(registerer prometheus.Registerer) *FIFOMetrics {
	calculations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "apotek_fifo_calculations_total",
		Help: "FIFO cost calculations partitioned by outcome.",
	}, []string{"outcome"})
	negative := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "apotek_fifo_negative_inventory_total",
		Help: "Calculations whose ledger shows stock sold before it was purchased.",
	})
	pending := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "apotek_fifo_pending_products",
		Help: "Products with profit recognition waiting for purchase rows.",
	})
	registerer.MustRegister(calculations, negative, pending)
	return &FIFOMetrics{calculations: calculations, negativeInventory: negative, pendingProducts: pending}
}

// ObserveCalculation records one engine run.
func (m *FIFOMetrics) ObserveCalculation(success, negativeInventory bool) {
	if m == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.calculations.WithLabelValues(outcome).Inc()
	if negativeInventory {
		m.negativeInventory.Inc()
	}
}

// SetPendingProducts updates the pending product gauge.
func (m *FIFOMetrics) SetPendingProducts(n int) {
	if m == nil {
		return
	}
	m.pendingProducts.Set(float64(n))
}
