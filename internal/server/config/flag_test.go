package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseFlags_OverridesDefaults(t *testing.T) {
	orig := os.Args
	defer func() { os.Args = orig }()

	os.Args = []string{"server",
		"-a", ":9090",
		"-d", "postgres://u:p@localhost:5432/db",
		"-s", "flag-secret",
		"-t", "15",
		"-r", "48",
		"-m", "3",
		"-w", "30",
	}

	var c Config
	c.LoadDefaults()
	parseFlags(&c)

	assert.Equal(t, ":9090", c.EndpointAddr)
	assert.Equal(t, "postgres://u:p@localhost:5432/db", c.DatabaseDSN)
	assert.Equal(t, "flag-secret", c.SecretKey)
	assert.Equal(t, 15*time.Minute, c.AccessTokenValidityDuration)
	assert.Equal(t, 48*time.Hour, c.SessionValidityDuration)
	assert.Equal(t, 3, c.MaxActiveSessions)
	assert.Equal(t, 30*time.Minute, c.SweepInterval)
}

func TestParseFlags_KeepsDefaultsWhenAbsent(t *testing.T) {
	orig := os.Args
	defer func() { os.Args = orig }()

	os.Args = []string{"server"}

	var c Config
	c.LoadDefaults()
	parseFlags(&c)

	assert.Equal(t, ":8080", c.EndpointAddr)
	assert.Equal(t, 5, c.MaxActiveSessions)
	assert.Equal(t, 1*time.Hour, c.SweepInterval)
}
