package actuator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"still_controller/internal/models"
)

type fakeHardware struct {
	calls []int
	err   error
}

func (f *fakeHardware) SetDuty(percent int) error {
	f.calls = append(f.calls, percent)
	return f.err
}

func TestApply_IdempotentForSameDuty(t *testing.T) {
	hw := &fakeHardware{}
	a := New(hw)

	got, err := a.Apply(models.ActuatorCommand{Duty: 40, Source: models.SourcePhase})
	require.NoError(t, err)
	assert.Equal(t, Applied{Duty: 40, Source: models.SourcePhase, Confirmed: true}, got)

	got, err = a.Apply(models.ActuatorCommand{Duty: 40, Source: models.SourceManual})
	require.NoError(t, err)
	assert.True(t, got.Confirmed)
	assert.Equal(t, models.SourceManual, got.Source)
	assert.Equal(t, []int{40}, hw.calls)

	_, err = a.Apply(models.ActuatorCommand{Duty: 0, Source: models.SourceSafety})
	require.NoError(t, err)
	assert.Equal(t, []int{40, 0}, hw.calls)
}

func TestApply_FirstZeroStillReachesHardware(t *testing.T) {
	hw := &fakeHardware{}
	a := New(hw)
	_, err := a.Apply(models.Off(models.SourcePhase))
	require.NoError(t, err)
	assert.Equal(t, []int{0}, hw.calls)
}

func TestApply_HardwareFailureIsReportedAndRetried(t *testing.T) {
	hw := &fakeHardware{}
	a := New(hw)
	_, err := a.Apply(models.ActuatorCommand{Duty: 30, Source: models.SourcePhase})
	require.NoError(t, err)

	hw.err = errors.New("relay stuck")
	got, err := a.Apply(models.ActuatorCommand{Duty: 60, Source: models.SourcePhase})
	require.ErrorIs(t, err, ErrConfirm)
	assert.False(t, got.Confirmed)
	assert.False(t, a.Last().Confirmed)

	// same duty is not skipped while unconfirmed
	hw.err = nil
	_, err = a.Apply(models.ActuatorCommand{Duty: 30, Source: models.SourcePhase})
	require.NoError(t, err)
	assert.Equal(t, []int{30, 60, 30}, hw.calls)
}
