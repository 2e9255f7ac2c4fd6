package simulator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type manualClock struct{ t time.Time }

func (c *manualClock) now() time.Time          { return c.t }
func (c *manualClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func quietConfig() Config {
	cfg := DefaultConfig()
	cfg.NoiseC = 0
	return cfg
}

func TestPlant_HeatsUnderDuty(t *testing.T) {
	clk := &manualClock{t: time.Unix(0, 0)}
	p := New(quietConfig(), WithClock(clk.now))

	require.NoError(t, p.SetDuty(100))
	clk.advance(10 * time.Second)

	r, err := p.Measure(context.Background())
	require.NoError(t, err)
	assert.True(t, r.Valid)
	assert.InDelta(t, 29.9, r.Temperature, 0.2)
	assert.Equal(t, clk.t, r.Timestamp)
}

func TestPlant_CoolsTowardAmbient(t *testing.T) {
	clk := &manualClock{t: time.Unix(0, 0)}
	cfg := quietConfig()
	cfg.InitialC = 80
	cfg.LossRate = 0.1
	p := New(cfg, WithClock(clk.now))

	clk.advance(time.Hour)
	_, err := p.Measure(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, cfg.AmbientC, p.Temperature(), 0.01)
}

func TestPlant_DutyIsClamped(t *testing.T) {
	p := New(quietConfig())
	require.NoError(t, p.SetDuty(140))
	assert.Equal(t, 100, p.Duty())
	require.NoError(t, p.SetDuty(-3))
	assert.Equal(t, 0, p.Duty())
}

func TestPlant_FailSensor(t *testing.T) {
	p := New(quietConfig())
	boom := errors.New("bus stuck")
	p.FailSensor(boom)
	_, err := p.Measure(context.Background())
	assert.ErrorIs(t, err, boom)

	p.FailSensor(nil)
	_, err = p.Measure(context.Background())
	assert.NoError(t, err)
}

func TestPlant_MeasureDelayHonoursContext(t *testing.T) {
	cfg := quietConfig()
	cfg.MeasureDelay = time.Second
	p := New(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := p.Measure(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
