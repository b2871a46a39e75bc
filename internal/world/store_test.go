package world

import (
	"testing"

	"github.com/annel0/opencraft/internal/vec"
	"github.com/annel0/opencraft/internal/world/block"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkStoreAddLookupRemove(t *testing.T) {
	store := NewChunkStore()
	ref := store.Add(NewChunk(vec.Vec3{X: 1, Y: 2, Z: 3}))

	assert.False(t, ref.IsNull())
	assert.Equal(t, 1, store.Len())

	found, ok := store.Lookup(vec.Vec3{X: 1, Y: 2, Z: 3})
	require.True(t, ok)
	assert.Equal(t, ref, found)

	chunk, ok := store.Chunk(ref)
	require.True(t, ok)
	assert.Equal(t, vec.Vec3{X: 1, Y: 2, Z: 3}, chunk.Location)

	assert.True(t, store.Remove(ref))
	assert.False(t, store.Remove(ref), "Повторная выгрузка должна быть no-op")

	_, ok = store.Chunk(ref)
	assert.False(t, ok, "Ссылка на выгруженный чанк не должна разрешаться")
	assert.Equal(t, 0, store.Len())
}

func TestChunkStoreStaleRefAfterSlotReuse(t *testing.T) {
	store := NewChunkStore()
	old := store.Add(NewChunk(vec.Zero3))
	store.Remove(old)

	fresh := store.Add(NewChunk(vec.Vec3{X: 9}))
	assert.NotEqual(t, old, fresh)

	_, ok := store.Chunk(old)
	assert.False(t, ok, "Старая ссылка не должна указывать на новый чанк в том же слоте")

	_, ok = store.Blocks(NoChunk)
	assert.False(t, ok)
}

func TestChunkStoreReplaceAtSameLocation(t *testing.T) {
	store := NewChunkStore()
	first := store.Add(NewChunk(vec.Zero3))
	second := store.Add(NewChunk(vec.Zero3))

	assert.Equal(t, 1, store.Len())
	_, ok := store.Chunk(first)
	assert.False(t, ok)
	_, ok = store.Chunk(second)
	assert.True(t, ok)
}

func TestChunkStoreLinkNeighborsSymmetric(t *testing.T) {
	store := NewChunkStore()
	center := store.Add(NewChunk(vec.Zero3))
	east := store.Add(NewChunk(vec.Vec3{X: 1}))
	down := store.Add(NewChunk(vec.Vec3{Y: -1}))

	store.LinkNeighbors(east)
	store.LinkNeighbors(down)
	store.LinkNeighbors(center)

	got, ok := store.Neighbor(center, East)
	require.True(t, ok)
	assert.Equal(t, east, got)

	got, ok = store.Neighbor(east, West)
	require.True(t, ok)
	assert.Equal(t, center, got, "Связь должна быть симметричной")

	got, ok = store.Neighbor(down, Up)
	require.True(t, ok)
	assert.Equal(t, center, got)

	_, ok = store.Neighbor(center, North)
	assert.False(t, ok, "Отсутствующий сосед означает 'не загружен'")

	// Выгрузка снимает обратную ссылку
	store.Remove(east)
	_, ok = store.Neighbor(center, East)
	assert.False(t, ok)
}

func TestChunkStoreAsymmetricNeighbors(t *testing.T) {
	store := NewChunkStore()
	a := store.Add(NewChunk(vec.Zero3))
	b := store.Add(NewChunk(vec.Vec3{Z: 1}))

	require.True(t, store.SetNeighbor(a, North, b))

	got, ok := store.Neighbor(a, North)
	require.True(t, ok)
	assert.Equal(t, b, got)

	_, ok = store.Neighbor(b, South)
	assert.False(t, ok, "Обратная связь не создаётся автоматически")

	assert.False(t, store.SetNeighbor(a, DirectionCount, b))
	_, ok = store.Neighbor(a, DirectionCount)
	assert.False(t, ok)
}

func TestChunkStoreRingTopology(t *testing.T) {
	// Кольцо взаимных соседей - нормальная топология
	store := NewChunkStore()
	a := store.Add(NewChunk(vec.Zero3))
	b := store.Add(NewChunk(vec.Vec3{X: 1}))
	store.SetNeighbor(a, East, b)
	store.SetNeighbor(b, East, a)
	store.SetNeighbor(a, West, b)
	store.SetNeighbor(b, West, a)

	ref := a
	for i := 0; i < 5; i++ {
		next, ok := store.Neighbor(ref, East)
		require.True(t, ok)
		ref = next
	}
	assert.Equal(t, b, ref)
}

func TestChunkStoreChunkAtAndRefs(t *testing.T) {
	store := NewChunkStore()
	neg := store.Add(NewChunk(vec.Vec3{X: -1, Y: 0, Z: -1}))
	zero := store.Add(NewChunk(vec.Zero3))

	ref, origin, ok := store.ChunkAt(vec.Vec3Float{X: -0.5, Y: 3, Z: -15.2})
	require.True(t, ok)
	assert.Equal(t, neg, ref)
	assert.Equal(t, vec.Vec3{X: -16, Y: 0, Z: -16}, origin)

	_, _, ok = store.ChunkAt(vec.Vec3Float{X: 100, Y: 0, Z: 0})
	assert.False(t, ok)

	assert.Equal(t, []ChunkRef{neg, zero}, store.Refs(), "Обход идёт в порядке координат")

	visited := 0
	store.ForEach(func(ref ChunkRef, chunk *Chunk) bool {
		visited++
		return false
	})
	assert.Equal(t, 1, visited, "ForEach должен остановиться по false")
}

func TestChunkStoreMutableBlocksAndRemeshTickets(t *testing.T) {
	store := NewChunkStore()
	a := store.Add(NewChunk(vec.Vec3{X: 2}))
	b := store.Add(NewChunk(vec.Vec3{X: 1}))

	blocks, ok := store.MutableBlocks(a)
	require.True(t, ok)
	blocks[0] = block.Stone

	readOnly, _ := store.Blocks(a)
	assert.Equal(t, block.Stone, readOnly[0])

	assert.Empty(t, store.PendingRemesh())

	epochA, ok := store.MarkRemesh(a)
	require.True(t, ok)
	_, ok = store.MarkRemesh(b)
	require.True(t, ok)

	tickets := store.PendingRemesh()
	require.Len(t, tickets, 2)
	assert.Equal(t, b, tickets[0].Ref, "Тикеты упорядочены по координатам")
	assert.Equal(t, a, tickets[1].Ref)
	assert.Equal(t, epochA, tickets[1].Epoch)

	assert.True(t, store.AckRemesh(a, epochA))
	assert.False(t, store.NeedsRemesh(a))
	assert.True(t, store.NeedsRemesh(b))

	_, ok = store.MarkRemesh(NoChunk)
	assert.False(t, ok)
	assert.False(t, store.AckRemesh(NoChunk, 1))
}
