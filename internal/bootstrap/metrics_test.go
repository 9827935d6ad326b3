package bootstrap

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/sessiond/config"
)

func TestNewMetricsClient_Disabled(t *testing.T) {
	client, err := NewMetricsClient(context.Background(), config.MetricsConfig{Enabled: false, StatsdAddress: "127.0.0.1:8125"}, discardLogger())
	require.NoError(t, err)
	assert.Nil(t, client)
}

func TestNewMetricsClient_Enabled(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer pc.Close()

	client, err := NewMetricsClient(context.Background(), config.MetricsConfig{
		Enabled:       true,
		StatsdAddress: pc.LocalAddr().String(),
		Prefix:        "sessiond",
	}, discardLogger())
	require.NoError(t, err)
	require.NotNil(t, client)
	defer client.Close()

	client.Count("auth.operation", 1, nil)
	require.NoError(t, pc.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 128)
	n, _, err := pc.ReadFrom(buf)
	require.NoError(t, err)
	assert.Equal(t, "sessiond.auth.operation:1|c", string(buf[:n]))
}

func TestNewMetricsClient_BadAddress(t *testing.T) {
	_, err := NewMetricsClient(context.Background(), config.MetricsConfig{Enabled: true, StatsdAddress: "no-port"}, discardLogger())
	require.Error(t, err)
}
