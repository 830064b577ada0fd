// Package report prints GPU telemetry in labelled or terse form.
package report

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/skobkin/amdgpu-querer/internal/monitor"
)

// Reporter writes metric lines for one device.
type Reporter struct {
	out     io.Writer
	support monitor.Support
	metrics monitor.Metrics
	logger  *slog.Logger
}

// New builds a Reporter over a capability descriptor and a snapshot.
func New(out io.Writer, support monitor.Support, metrics monitor.Metrics, logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Reporter{
		out:     out,
		support: support,
		metrics: metrics,
		logger:  logger,
	}
}

// Full prints the header, the snapshot timestamp and every metric labelled.
func (r *Reporter) Full() error {
	if _, err := fmt.Fprintln(r.out, "The current GPU metrics: "); err != nil {
		return err
	}
	if err := r.Timestamp(); err != nil {
		return err
	}
	for _, m := range metrics {
		if err := r.Show(m.Kind, true); err != nil {
			return err
		}
	}
	return nil
}

// Timestamp prints the snapshot time in milliseconds. A failed read prints nothing.
func (r *Reporter) Timestamp() error {
	ts, err := r.metrics.Timestamp()
	if err != nil {
		r.logger.Debug("timestamp unavailable", "err", err)
		return nil
	}
	_, err = fmt.Fprintf(r.out, "The GPU time stamp is: %dms\n", ts)
	return err
}

// Show prints one metric. Labelled output always carries the support-status
// line once the outcome is known; the value line follows only for supported,
// readable metrics. Terse output prints the bare value or nothing.
// Only write errors are returned; metric failures are logged and skipped.
func (r *Reporter) Show(kind monitor.Kind, labelled bool) error {
	m, ok := Lookup(kind)
	if !ok {
		return fmt.Errorf("unknown metric %v", kind)
	}
	logger := r.logger.With("metric", kind)

	supported, err := r.support.IsSupported(kind)
	if err != nil {
		logger.Debug("support query failed", "err", err)
		return nil
	}

	if !supported {
		if !labelled {
			logger.Warn("metric not supported by this GPU")
			return nil
		}
		return r.status(m, false)
	}

	value, err := r.metrics.Value(kind)
	if err != nil {
		logger.Debug("metric read failed", "err", err)
		return nil
	}

	if !labelled {
		_, err = fmt.Fprintln(r.out, m.Format(value))
		return err
	}
	if err := r.status(m, true); err != nil {
		return err
	}
	_, err = fmt.Fprintf(r.out, "The %s is: %s%s\n", m.Label, m.Format(value), m.Unit)
	return err
}

func (r *Reporter) status(m Metric, supported bool) error {
	_, err := fmt.Fprintf(r.out, "%s support status: %s\n", m.Label, strconv.FormatBool(supported))
	return err
}
