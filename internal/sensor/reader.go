// Package sensor performs bounded measurement cycles against the process sensor bus.
//
// The reader only reports: it counts consecutive failures but never decides FAULT.
package sensor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"gonum.org/v1/gonum/stat"

	"still_controller/internal/models"
)

// Bus is the sensor bus collaborator. Implementations should honour ctx's deadline.
type Bus interface {
	Measure(ctx context.Context) (models.Reading, error)
}

var (
	ErrTimeout     = errors.New("sensor: measurement timed out")
	ErrBusy        = errors.New("sensor: previous bus transaction still in flight")
	ErrImplausible = errors.New("sensor: implausible measurement")
)

const defaultTrendWindow = 30

type sample struct {
	at   time.Time
	temp float64
}

// Reader wraps a Bus with a timeout, a consecutive-failure counter and a trend window.
// It is driven from a single goroutine (the supervisor).
type Reader struct {
	bus     Bus
	timeout time.Duration
	now     func() time.Time

	inflight atomic.Bool
	failures int
	lastErr  error

	window     []sample
	windowSize int
}

// Option customises a Reader.
type Option func(*Reader)

// WithClock overrides the time source used to stamp readings.
func WithClock(now func() time.Time) Option {
	return func(r *Reader) { r.now = now }
}

// WithTrendWindow sets how many valid readings feed Trend.
func WithTrendWindow(n int) Option {
	return func(r *Reader) {
		if n >= 2 {
			r.windowSize = n
		}
	}
}

// NewReader returns a Reader bounded by timeout per measurement.
func NewReader(bus Bus, timeout time.Duration, opts ...Option) *Reader {
	r := &Reader{
		bus:        bus,
		timeout:    timeout,
		now:        time.Now,
		windowSize: defaultTrendWindow,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.window = make([]sample, 0, r.windowSize)
	return r
}

// Measure performs one bus transaction and returns a reading. It never blocks longer
// than the configured timeout. Failures yield an invalid reading and extend the streak.
func (r *Reader) Measure(ctx context.Context) models.Reading {
	ts := r.now()

	got, err := r.transact(ctx)
	if err == nil {
		err = plausible(got)
	}
	if err != nil {
		r.failures++
		r.lastErr = err
		return models.InvalidReading(ts)
	}

	if got.Timestamp.IsZero() {
		got.Timestamp = ts
	}
	got.Valid = true
	r.failures = 0
	r.lastErr = nil
	r.observe(got)
	return got
}

// Failures is the current run of consecutive failed measurements.
func (r *Reader) Failures() int {
	return r.failures
}

// LastError is the cause of the most recent failure, nil after a success.
func (r *Reader) LastError() error {
	return r.lastErr
}

// Trend returns the temperature slope in °C per minute over the window.
func (r *Reader) Trend() float64 {
	if len(r.window) < 2 {
		return 0
	}
	origin := r.window[0].at
	xs := make([]float64, len(r.window))
	ys := make([]float64, len(r.window))
	for i, s := range r.window {
		xs[i] = s.at.Sub(origin).Seconds()
		ys[i] = s.temp
	}
	if xs[len(xs)-1] == 0 {
		return 0
	}
	_, beta := stat.LinearRegression(xs, ys, nil, false)
	if math.IsNaN(beta) || math.IsInf(beta, 0) {
		return 0
	}
	return beta * 60
}

type result struct {
	reading models.Reading
	err     error
}

func (r *Reader) transact(ctx context.Context) (models.Reading, error) {
	if !r.inflight.CompareAndSwap(false, true) {
		return models.Reading{}, ErrBusy
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	done := make(chan result, 1)
	go func() {
		got, err := r.bus.Measure(ctx)
		r.inflight.Store(false)
		done <- result{reading: got, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return models.Reading{}, fmt.Errorf("sensor bus: %w", res.err)
		}
		return res.reading, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return models.Reading{}, ErrTimeout
		}
		return models.Reading{}, ctx.Err()
	}
}

func (r *Reader) observe(got models.Reading) {
	if len(r.window) == r.windowSize {
		copy(r.window, r.window[1:])
		r.window = r.window[:len(r.window)-1]
	}
	r.window = append(r.window, sample{at: got.Timestamp, temp: got.Temperature})
}

func plausible(r models.Reading) error {
	switch {
	case math.IsNaN(r.Temperature) || math.IsInf(r.Temperature, 0):
		return fmt.Errorf("%w: temperature %v", ErrImplausible, r.Temperature)
	case math.IsNaN(r.Humidity) || r.Humidity < 0 || r.Humidity > 100:
		return fmt.Errorf("%w: humidity %v", ErrImplausible, r.Humidity)
	}
	return nil
}
