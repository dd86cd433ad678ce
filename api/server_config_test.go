package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPServerConfig_WithDefaults(t *testing.T) {
	cfg := HTTPServerConfig{ReadTimeout: time.Second}.WithDefaults()

	require.NotNil(t, cfg.Log)
	assert.Equal(t, DefaultListenAddr, cfg.ListenAddr)
	assert.Equal(t, DefaultReadHeaderTimeout, cfg.ReadHeaderTimeout)
	assert.Equal(t, DefaultShutdownDuration, cfg.GracefulShutdownDuration)
	assert.Equal(t, time.Second, cfg.ReadTimeout)
	assert.Empty(t, cfg.MetricsAddr)

	custom := HTTPServerConfig{ListenAddr: ":9000", GracefulShutdownDuration: time.Minute}.WithDefaults()
	assert.Equal(t, ":9000", custom.ListenAddr)
	assert.Equal(t, time.Minute, custom.GracefulShutdownDuration)
}
