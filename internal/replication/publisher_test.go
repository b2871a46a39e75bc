package replication

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/annel0/opencraft/internal/eventbus"
	"github.com/annel0/opencraft/internal/player"
	"github.com/annel0/opencraft/internal/vec"
	"github.com/annel0/opencraft/internal/world"
	"github.com/annel0/opencraft/internal/world/block"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingBus отклоняет любую публикацию
type failingBus struct{ eventbus.EventBus }

func (failingBus) Publish(context.Context, *eventbus.Envelope) error {
	return errors.New("нет соединения")
}

func TestPublisherAcksEpoch(t *testing.T) {
	store := world.NewChunkStore()
	ref := store.Add(world.NewChunk(vec.Zero3))
	chunk, _ := store.Chunk(ref)
	chunk.Fill(block.Stone)
	epoch := chunk.MarkRemesh()

	bus := eventbus.NewMemoryBus(4)
	var mu sync.Mutex
	var payloads [][]byte
	_, err := bus.Subscribe(context.Background(), eventbus.Filter{Types: []string{eventbus.ChunkRemesh}},
		func(ctx context.Context, ev *eventbus.Envelope) {
			mu.Lock()
			payloads = append(payloads, ev.Payload)
			mu.Unlock()
		})
	require.NoError(t, err)

	codec := newCodec(t)
	pub := NewPublisher(store, bus, codec, "")

	tickets := store.PendingRemesh()
	require.Len(t, tickets, 1)
	require.NoError(t, pub.Remesh(context.Background(), chunk, tickets[0]))
	assert.False(t, chunk.NeedsRemesh(), "Публикация подтверждает эпоху")

	data, got, ok := pub.Latest(vec.Zero3)
	require.True(t, ok)
	assert.Equal(t, epoch, got)

	require.NoError(t, bus.Close())
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, payloads, 1)
	assert.Equal(t, data, payloads[0])

	pub.Forget(vec.Zero3)
	_, _, ok = pub.Latest(vec.Zero3)
	assert.False(t, ok)
}

func TestPublisherKeepsFlagOnFailure(t *testing.T) {
	store := world.NewChunkStore()
	ref := store.Add(world.NewChunk(vec.Zero3))
	chunk, _ := store.Chunk(ref)
	epoch := chunk.MarkRemesh()

	pub := NewPublisher(store, failingBus{}, newCodec(t), "server")
	err := pub.Remesh(context.Background(), chunk, world.RemeshTicket{Ref: ref, Location: vec.Zero3, Epoch: epoch})

	assert.Error(t, err)
	assert.True(t, chunk.NeedsRemesh(), "Без публикации флаг остаётся поднятым")
}

func TestPublisherStaleTicket(t *testing.T) {
	store := world.NewChunkStore()
	ref := store.Add(world.NewChunk(vec.Zero3))
	chunk, _ := store.Chunk(ref)

	first := chunk.MarkRemesh()
	ticket := world.RemeshTicket{Ref: ref, Location: vec.Zero3, Epoch: first}
	chunk.MarkRemesh() // Авторитет изменил чанк во время перестроения

	pub := NewPublisher(store, nil, newCodec(t), "server")
	require.NoError(t, pub.Remesh(context.Background(), chunk, ticket))
	assert.True(t, chunk.NeedsRemesh(), "Новая инвалидация переживает подтверждение старой")
}

func TestReplicaApply(t *testing.T) {
	codec := newCodec(t)
	src := world.NewChunk(vec.Vec3{X: 2})
	src.Fill(block.Grass)

	replicaStore := world.NewChunkStore()
	replica := NewReplica(replicaStore, codec)

	accepted, err := replica.Apply(codec.Encode(SnapshotOf(src, 2)))
	require.NoError(t, err)
	assert.True(t, accepted)
	assert.Equal(t, 0, replicaStore.Len(), "Apply не трогает хранилище")
	assert.Equal(t, 1, replica.Pending())

	n, err := replica.Drain()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 0, replica.Pending())

	ref, ok := replicaStore.Lookup(vec.Vec3{X: 2})
	require.True(t, ok, "Реплика загружает неизвестный чанк")
	chunk, _ := replicaStore.Chunk(ref)
	assert.Equal(t, src.Blocks, chunk.Blocks)
	assert.True(t, chunk.NeedsRemesh(), "Реплика поднимает локальный флаг перестроения")

	// Устаревший снимок не откатывает данные
	src.Fill(block.Stone)
	accepted, err = replica.Apply(codec.Encode(SnapshotOf(src, 1)))
	require.NoError(t, err)
	assert.False(t, accepted)
	n, err = replica.Drain()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, block.Grass, chunk.Blocks[0])

	_, err = replica.Apply([]byte("garbage"))
	assert.ErrorIs(t, err, ErrCorruptSnapshot)
}

func TestReplicaKeepsNewestQueuedSnapshot(t *testing.T) {
	codec := newCodec(t)
	replica := NewReplica(world.NewChunkStore(), codec)

	src := world.NewChunk(vec.Zero3)
	src.Fill(block.Dirt)
	newer := codec.Encode(SnapshotOf(src, 5))
	src.Fill(block.Tin)
	older := codec.Encode(SnapshotOf(src, 4))

	accepted, err := replica.Apply(newer)
	require.NoError(t, err)
	assert.True(t, accepted)
	accepted, err = replica.Apply(older)
	require.NoError(t, err)
	assert.False(t, accepted, "Старый снимок не вытесняет новый из очереди")
	assert.Equal(t, 1, replica.Pending())

	_, err = replica.Drain()
	require.NoError(t, err)
	ref, _ := replica.store.Lookup(vec.Zero3)
	chunk, _ := replica.store.Chunk(ref)
	assert.Equal(t, block.Dirt, chunk.Blocks[0])
}

// Снимки приходят из горутины шины, пока цикл сканирует выделение.
// Хранилище меняет только Drain в горутине цикла.
func TestReplicaBusDeliveryDoesNotTouchScannedChunks(t *testing.T) {
	codec := newCodec(t)
	store := world.NewChunkStore()
	origin := world.NewChunk(vec.Zero3)
	origin.SetBlock(vec.Vec3{X: 2, Y: 1, Z: 4}, block.Stone)
	store.LinkNeighbors(store.Add(origin))

	players := player.NewRegistry()
	_, err := players.Join(1, "viewer", vec.Vec3Float{X: 2.5, Y: 0.2, Z: 1.5})
	require.NoError(t, err)
	players.UpdateContainingAreas(store)
	scanner := player.NewSelectionScanner(store)

	bus := eventbus.NewMemoryBus(64)
	replica := NewReplica(store, codec)
	_, err = replica.Attach(context.Background(), bus)
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		src := world.NewChunk(vec.Zero3)
		for epoch := uint64(1); epoch <= 50; epoch++ {
			if epoch%2 == 0 {
				src.Fill(block.Stone)
			} else {
				src.Fill(block.Air)
			}
			ev := eventbus.NewEnvelope(eventbus.ChunkRemesh, "server", codec.Encode(SnapshotOf(src, epoch)))
			ev.Priority = 5
			assert.NoError(t, bus.Publish(context.Background(), ev))
		}
	}()

	for i := 0; i < 200; i++ {
		_, err := replica.Drain()
		require.NoError(t, err)
		players.Scan(scanner)
	}
	wg.Wait()
	require.NoError(t, bus.Close())

	_, err = replica.Drain()
	require.NoError(t, err)
	chunk, _ := store.Chunk(mustLookup(t, store, vec.Zero3))
	assert.Equal(t, block.Stone, chunk.Blocks[0], "После очереди применён последний снимок (эпоха 50)")
}

func mustLookup(t *testing.T, store *world.ChunkStore, loc vec.Vec3) world.ChunkRef {
	t.Helper()
	ref, ok := store.Lookup(loc)
	require.True(t, ok)
	return ref
}

func TestSelectionSnapshotResolve(t *testing.T) {
	store := world.NewChunkStore()
	origin := store.Add(world.NewChunk(vec.Zero3))
	east := store.Add(world.NewChunk(vec.Vec3{X: 1}))

	p := player.NewPlayer(4, "viewer", vec.Vec3Float{})
	p.Selected.BlockLoc = vec.Vec3{X: 0, Y: 1, Z: 2}
	p.Selected.TerrainArea = east
	p.Selected.NeighborBlockLoc = vec.Vec3{X: 15, Y: 1, Z: 2}
	p.Selected.NeighborTerrainArea = origin

	data, err := EncodeSelections([]SelectionSnapshot{SelectionOf(store, *p)})
	require.NoError(t, err)
	decoded, err := DecodeSelections(data)
	require.NoError(t, err)
	require.Len(t, decoded, 1)
	assert.True(t, decoded[0].HasSelection())

	// Реплика с другим порядком загрузки получает свои ссылки
	replica := world.NewChunkStore()
	rEast := replica.Add(world.NewChunk(vec.Vec3{X: 1}))
	sel := decoded[0].Resolve(replica)
	assert.Equal(t, rEast, sel.TerrainArea)
	assert.Equal(t, vec.Vec3{X: 0, Y: 1, Z: 2}, sel.BlockLoc)
	assert.False(t, sel.HasNeighbor(), "Чанк соседа не загружен у реплики")

	empty := SelectionOf(store, *player.NewPlayer(5, "idle", vec.Vec3Float{}))
	assert.False(t, empty.HasSelection())
	assert.False(t, empty.Resolve(store).HasSelection())
}
