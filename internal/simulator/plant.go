// Package simulator provides a lumped thermal model of the still: a heater driven by duty
// and a Newtonian loss toward ambient. It serves as both the sensor bus and the heater
// hardware when no serial device is attached.
package simulator

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"still_controller/internal/models"
)

// Config describes the simulated plant.
type Config struct {
	AmbientC     float64       `mapstructure:"ambient_c"`
	InitialC     float64       `mapstructure:"initial_c"`
	HeatRate     float64       `mapstructure:"heat_rate"` // °C per second at 100% duty
	LossRate     float64       `mapstructure:"loss_rate"` // fraction of (T - ambient) lost per second
	HumidityPct  float64       `mapstructure:"humidity_pct"`
	NoiseC       float64       `mapstructure:"noise_c"`    // peak measurement noise
	TimeScale    float64       `mapstructure:"time_scale"` // simulated seconds per real second
	MeasureDelay time.Duration `mapstructure:"measure_delay"`
}

// DefaultConfig settles around 77.4°C under a proportional band of 5°C and a 78°C target.
func DefaultConfig() Config {
	return Config{
		AmbientC:    20,
		InitialC:    20,
		HeatRate:    1.0,
		LossRate:    0.002,
		HumidityPct: 45,
		NoiseC:      0.05,
		TimeScale:   1,
	}
}

// Plant is safe for concurrent use: the sensor bus may still be measuring when the
// supervisor drives the heater.
type Plant struct {
	cfg Config
	now func() time.Time

	mu      sync.Mutex
	tempC   float64
	duty    int
	updated time.Time
	faulty  error
}

// Option customises a Plant.
type Option func(*Plant)

// WithClock overrides the wall clock used to advance the model.
func WithClock(now func() time.Time) Option {
	return func(p *Plant) { p.now = now }
}

// New returns a plant at cfg.InitialC with the heater off.
func New(cfg Config, opts ...Option) *Plant {
	if cfg.TimeScale <= 0 {
		cfg.TimeScale = 1
	}
	p := &Plant{cfg: cfg, now: time.Now, tempC: cfg.InitialC}
	for _, o := range opts {
		o(p)
	}
	p.updated = p.now()
	return p
}

// Measure advances the model to now and reports the current temperature.
func (p *Plant) Measure(ctx context.Context) (models.Reading, error) {
	if d := p.cfg.MeasureDelay; d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return models.Reading{}, ctx.Err()
		case <-t.C:
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.faulty != nil {
		return models.Reading{}, p.faulty
	}
	now := p.now()
	p.advance(now)

	temp := p.tempC
	if p.cfg.NoiseC > 0 {
		temp += (rand.Float64()*2 - 1) * p.cfg.NoiseC
	}
	return models.NewReading(temp, p.cfg.HumidityPct, now), nil
}

// SetDuty settles the model up to now under the old duty, then switches.
func (p *Plant) SetDuty(percent int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.advance(p.now())
	p.duty = max(0, min(100, percent))
	return nil
}

// Temperature returns the noiseless model temperature.
func (p *Plant) Temperature() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tempC
}

// Duty returns the heater duty currently driving the model.
func (p *Plant) Duty() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.duty
}

// FailSensor makes every Measure return err until called again with nil.
func (p *Plant) FailSensor(err error) {
	p.mu.Lock()
	p.faulty = err
	p.mu.Unlock()
}

// advance integrates with one-second Euler steps. Caller holds mu.
func (p *Plant) advance(now time.Time) {
	elapsed := now.Sub(p.updated).Seconds() * p.cfg.TimeScale
	if elapsed <= 0 {
		return
	}
	p.updated = now

	heat := p.cfg.HeatRate * float64(p.duty) / 100
	for elapsed > 0 {
		dt := math.Min(elapsed, 1)
		p.tempC += (heat - p.cfg.LossRate*(p.tempC-p.cfg.AmbientC)) * dt
		elapsed -= dt
	}
}
