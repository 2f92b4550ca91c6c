package monitoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigurationHealthCheckFlagsMissingValues(t *testing.T) {
	check := ConfigurationHealthCheck(map[string]string{"KAFKA_BROKERS": "", "PORT": "8080"})
	result := check()
	assert.Equal(t, StatusUnhealthy, result.Status)
}

func TestConfigurationHealthCheckHealthyWhenAllPresent(t *testing.T) {
	check := ConfigurationHealthCheck(map[string]string{"PORT": "8080"})
	result := check()
	assert.Equal(t, StatusHealthy, result.Status)
}

func TestHealthCheckerAggregatesWorstStatus(t *testing.T) {
	hc := NewHealthChecker("telara-core", "dev")
	hc.AddCheck("ok", func() CheckResult { return CheckResult{Status: StatusHealthy} })
	hc.AddCheck("bad", func() CheckResult { return CheckResult{Status: StatusUnhealthy} })

	status := hc.CheckHealth()
	assert.Equal(t, StatusUnhealthy, status.Status)
	assert.Len(t, status.Checks, 2)
}
