package acquisition

import (
	"context"
	"time"

	"github.com/lotes/backend/internal/domain/lote"
	"github.com/lotes/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/metric"
)

type settlementResult string

const (
	settlementApplied   settlementResult = "applied"
	settlementDuplicate settlementResult = "duplicate"
	settlementFailed    settlementResult = "failed"
	settlementAbandoned settlementResult = "abandoned"
)

// Metrics records acquisition and settlement outcomes. A nil *Metrics records nothing.
type Metrics struct {
	attempts    *telemetry.Counter
	duration    *telemetry.Timer
	settlements *telemetry.Counter
}

// NewMetrics registers the acquisition instruments on meter
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	attempts, err := telemetry.NewCounter(meter,
		"lote_acquisitions_total", "Acquisition attempts by outcome", "{attempt}")
	if err != nil {
		return nil, err
	}
	duration, err := telemetry.NewTimer(meter,
		"lote_acquisition_duration_seconds", "Time to decide an acquisition", nil)
	if err != nil {
		return nil, err
	}
	settlements, err := telemetry.NewCounter(meter,
		"lote_settlements_total", "Balance settlements by result", "{settlement}")
	if err != nil {
		return nil, err
	}
	return &Metrics{attempts: attempts, duration: duration, settlements: settlements}, nil
}

func (m *Metrics) recordAcquisition(ctx context.Context, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	outcome, code := "committed", ""
	if err != nil {
		outcome = lote.KindOf(err).String()
		if ae, ok := asAcquisitionError(err); ok {
			code = ae.Code
		}
	}
	m.attempts.Inc(ctx, telemetry.AttrOutcome.String(outcome), telemetry.AttrCode.String(code))
	m.duration.Observe(ctx, elapsed, telemetry.AttrOutcome.String(outcome))
}

func (m *Metrics) recordSettlement(ctx context.Context, result settlementResult) {
	if m == nil {
		return
	}
	m.settlements.Inc(ctx, telemetry.AttrOutcome.String(string(result)))
}
