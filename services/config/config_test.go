package config

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rtuframe-go/bus"
)

func withLookup(t *testing.T, f func(string) ([]byte, bool)) {
	old := EmbeddedConfigLookup
	EmbeddedConfigLookup = f
	t.Cleanup(func() { EmbeddedConfigLookup = old })
}

func TestConfig_PublishEmbedded_RetainedPerKey(t *testing.T) {
	withLookup(t, func(device string) ([]byte, bool) {
		if device != "pico" {
			return nil, false
		}
		return []byte(`{
			"mode": "dev",
			"debug": true,
			"rtu": {"ports": [{"id": "uart0", "transport": "uart"}]}
		}`), true
	})

	b := bus.NewBus(16)
	conn := b.NewConnection("test-config")
	ctx := context.WithValue(context.Background(), CtxDeviceKey, "pico")
	NewConfigService().Start(ctx, conn)

	sub := conn.Subscribe(bus.T(configPrefix, "#"))
	got := map[string]any{}
	deadline := time.Now().Add(600 * time.Millisecond)
	for len(got) < 3 && time.Now().Before(deadline) {
		select {
		case m := <-sub.Channel():
			require.Len(t, m.Topic, 2)
			assert.Equal(t, configPrefix, m.Topic[0])
			assert.True(t, m.Retained)
			key, ok := m.Topic[1].(string)
			require.True(t, ok)
			got[key] = m.Payload
		case <-time.After(10 * time.Millisecond):
		}
	}
	require.Len(t, got, 3)

	assert.Equal(t, "dev", got["mode"])
	assert.Equal(t, true, got["debug"])
	rtu, ok := got["rtu"].(map[string]any)
	require.True(t, ok, "rtu payload type %T", got["rtu"])
	ports, ok := rtu["ports"].([]any)
	require.True(t, ok)
	assert.Len(t, ports, 1)
}

func TestConfig_PublishConfig_MissingDevice(t *testing.T) {
	conn := bus.NewBus(4).NewConnection("test-missing-device")
	assert.Error(t, NewConfigService().publishConfig(context.Background(), conn))
}

func TestConfig_PublishConfig_NoConfigFound(t *testing.T) {
	withLookup(t, func(string) ([]byte, bool) { return nil, false })
	conn := bus.NewBus(4).NewConnection("test-no-config")
	ctx := context.WithValue(context.Background(), CtxDeviceKey, "unknown-device")
	assert.Error(t, NewConfigService().publishConfig(ctx, conn))
}

func TestConfig_PublishConfig_NotAnObject(t *testing.T) {
	withLookup(t, func(string) ([]byte, bool) { return []byte(`[1,2]`), true })
	conn := bus.NewBus(4).NewConnection("test-array")
	ctx := context.WithValue(context.Background(), CtxDeviceKey, "pico")
	assert.Error(t, NewConfigService().publishConfig(ctx, conn))
}

func TestConfig_EmbeddedDefaultsParse(t *testing.T) {
	for dev := range embeddedConfigs {
		b := bus.NewBus(4)
		conn := b.NewConnection("test-" + dev)
		ctx := context.WithValue(context.Background(), CtxDeviceKey, dev)
		require.NoError(t, NewConfigService().publishConfig(ctx, conn), dev)
	}
}
