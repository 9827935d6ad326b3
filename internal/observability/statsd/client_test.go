package statsd

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listen(t *testing.T) net.PacketConn {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = pc.Close() })
	return pc
}

func readLine(t *testing.T, pc net.PacketConn) string {
	t.Helper()
	require.NoError(t, pc.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 512)
	n, _, err := pc.ReadFrom(buf)
	require.NoError(t, err)
	return string(buf[:n])
}

func TestClient_EmitsLines(t *testing.T) {
	pc := listen(t)
	client, err := Dial(context.Background(), Config{
		Address: pc.LocalAddr().String(),
		Prefix:  " sessiond. ",
		Tags:    map[string]string{"env": "prod", " ": "dropped"},
	})
	require.NoError(t, err)
	defer client.Close()

	client.Count("auth.login", 1, map[string]string{"result": " success "})
	assert.Equal(t, "sessiond.auth.login:1|c|#env:prod,result:success", readLine(t, pc))

	client.Timing("session.sweep", 1500*time.Microsecond, map[string]string{"env": "stage"})
	assert.Equal(t, "sessiond.session.sweep:1.5|ms|#env:stage", readLine(t, pc))
}

func TestClient_CloseAndNil(t *testing.T) {
	pc := listen(t)
	client, err := Dial(context.Background(), Config{Address: pc.LocalAddr().String()})
	require.NoError(t, err)

	require.NoError(t, client.Close())
	require.NoError(t, client.Close())
	client.Count("after.close", 1, nil)

	var nilClient *Client
	nilClient.Count("x", 1, nil)
	nilClient.Timing("x", time.Second, nil)
	assert.NoError(t, nilClient.Close())
}

func TestDial_Errors(t *testing.T) {
	_, err := Dial(context.Background(), Config{Address: "  "})
	require.Error(t, err)

	_, err = Dial(context.Background(), Config{Address: "bad address"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "statsd dial")
}

func TestMetricName(t *testing.T) {
	tests := []struct {
		prefix, name, want string
	}{
		{"", " auth/login ", "auth_login"},
		{"svc", "foo..bar", "svc.foo.bar"},
		{"svc", "a:b|c", "svc.a_b_c"},
		{"svc", "..", ""},
		{"svc", "", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, metricName(tt.prefix, tt.name), "%q + %q", tt.prefix, tt.name)
	}
}

func TestFormatTags(t *testing.T) {
	assert.Empty(t, formatTags(nil, nil))
	assert.Empty(t, formatTags(nil, map[string]string{" ": "x"}))
	assert.Equal(t, "|#a:1,b:2", formatTags(map[string]string{"b": "2"}, map[string]string{"a": "1"}))
}
