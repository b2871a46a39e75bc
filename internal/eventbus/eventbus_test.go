package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/annel0/opencraft/internal/vec"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSONEnvelope(t *testing.T) {
	payload := TerrainModifiedEvent{Location: vec.Vec3{X: 1, Y: 2, Z: 3}, Epoch: 4, Changed: 1}
	ev, err := NewJSONEnvelope(TerrainModified, "terrain", payload)
	require.NoError(t, err)

	_, err = uuid.Parse(ev.ID)
	assert.NoError(t, err, "ID события должен быть UUID")
	assert.Equal(t, TerrainModified, ev.EventType)
	assert.Equal(t, 1, ev.Version)

	var decoded TerrainModifiedEvent
	require.NoError(t, ev.DecodeJSON(&decoded))
	assert.Equal(t, payload, decoded)
}

func TestMemoryBusDeliversByFilter(t *testing.T) {
	bus := NewMemoryBus(16)

	var mu sync.Mutex
	var got []string
	_, err := bus.Subscribe(context.Background(), Filter{Types: []string{ChunkRemesh}}, func(ctx context.Context, ev *Envelope) {
		mu.Lock()
		got = append(got, ev.EventType)
		mu.Unlock()
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), NewEnvelope(TerrainModified, "terrain", nil)))
	require.NoError(t, bus.Publish(context.Background(), NewEnvelope(ChunkRemesh, "replication", nil)))

	// Close дожидается доставки всех событий
	require.NoError(t, bus.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{ChunkRemesh}, got)

	stats := bus.Metrics()
	assert.Equal(t, uint64(2), stats.Published)
	assert.Equal(t, uint64(1), stats.Consumed)
}

func TestMemoryBusClosed(t *testing.T) {
	bus := NewMemoryBus(1)
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close(), "Повторное закрытие безопасно")

	assert.ErrorIs(t, bus.Publish(context.Background(), NewEnvelope(TerrainModified, "t", nil)), ErrBusClosed)
	_, err := bus.Subscribe(context.Background(), Filter{}, func(context.Context, *Envelope) {})
	assert.ErrorIs(t, err, ErrBusClosed)
}

func TestMemoryBusUnsubscribe(t *testing.T) {
	bus := NewMemoryBus(4)
	defer bus.Close()

	calls := make(chan struct{}, 4)
	sub, err := bus.Subscribe(context.Background(), Filter{}, func(context.Context, *Envelope) {
		calls <- struct{}{}
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), NewEnvelope(TerrainModified, "t", nil)))
	select {
	case <-calls:
	case <-time.After(time.Second):
		t.Fatal("Событие не доставлено")
	}

	sub.Unsubscribe()
	require.NoError(t, bus.Publish(context.Background(), NewEnvelope(TerrainModified, "t", nil)))
	select {
	case <-calls:
		t.Fatal("Отписанный обработчик не должен вызываться")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMetricsExporterCollect(t *testing.T) {
	bus := NewMemoryBus(8)
	reg := prometheus.NewRegistry()

	exporter, err := NewMetricsExporter(bus, reg)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, bus.Publish(context.Background(), NewEnvelope(TerrainModified, "t", nil)))
	}
	require.NoError(t, bus.Close())

	exporter.Collect()
	exporter.Collect()
	assert.Equal(t, 3.0, testutil.ToFloat64(exporter.published), "Повторный опрос не удваивает счётчик")

	_, err = NewMetricsExporter(bus, reg)
	assert.Error(t, err, "Повторная регистрация в том же реестре должна падать")
}
