package groundtruth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineCurrentStaysWithinClampRanges(t *testing.T) {
	e := NewEngine()
	e.lastUpdate = time.Now().Add(-2 * time.Second)

	s := e.Current()

	assert.True(t, s.HeartRate >= hrClamp.min && s.HeartRate <= hrClamp.max)
	assert.True(t, s.HRVMs >= hrvClamp.min && s.HRVMs <= hrvClamp.max)
	assert.True(t, s.SpO2Percent >= spo2Clamp.min && s.SpO2Percent <= spo2Clamp.max)
	assert.True(t, s.SkinTempC >= tempClamp.min && s.SkinTempC <= tempClamp.max)
}

func TestEngineSkipsEvolutionUnderMinimumTick(t *testing.T) {
	e := NewEngine()
	e.lastUpdate = time.Now()
	first := e.Current()
	second := e.Current()

	assert.Equal(t, first.HeartRate, second.HeartRate)
}

func TestInjectAnomalyRejectsUnknownKind(t *testing.T) {
	e := NewEngine()
	ok := e.InjectAnomaly("not_a_real_pattern", 30*time.Second)
	assert.False(t, ok)

	status := e.AnomalyStatus()
	assert.False(t, status.Active)
}

func TestInjectAnomalyBiasesHeartRateTarget(t *testing.T) {
	e := NewEngine()
	require.True(t, e.InjectAnomaly("tachycardia_at_rest", 30*time.Second))

	status := e.AnomalyStatus()
	assert.True(t, status.Active)
	assert.Equal(t, "tachycardia_at_rest", status.Kind)
	assert.True(t, status.RemainingSeconds > 0 && status.RemainingSeconds <= 30)

	e.lastUpdate = time.Now().Add(-3 * time.Second)
	for i := 0; i < 5; i++ {
		e.lastUpdate = time.Now().Add(-3 * time.Second)
		e.Current()
	}
	assert.True(t, e.heartRate > 80, "sustained tachycardia overlay should pull heart rate up")
}

func TestAnomalyExpiresAfterDuration(t *testing.T) {
	e := NewEngine()
	require.True(t, e.InjectAnomaly("hypoxia", 1*time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	e.mu.Lock()
	_, active := e.activeAnomaly()
	e.mu.Unlock()

	assert.False(t, active)
}

func TestStateAtDoesNotMutateLiveState(t *testing.T) {
	e := NewEngine()
	before := e.heartRate

	_ = e.StateAt(time.Now().Add(-6 * time.Hour))

	assert.Equal(t, before, e.heartRate)
}

func TestRegistryReturnsStablePerUserEngine(t *testing.T) {
	r := NewRegistry()
	a := r.Get("user_001")
	b := r.Get("user_001")
	c := r.Get("user_002")

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
}
