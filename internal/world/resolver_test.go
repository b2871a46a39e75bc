package world

import (
	"math"
	"testing"

	"github.com/annel0/opencraft/internal/vec"
	"github.com/annel0/opencraft/internal/world/block"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newLinkedStore загружает чанки по координатам и связывает соседей
func newLinkedStore(t *testing.T, locations ...vec.Vec3) (*ChunkStore, map[vec.Vec3]ChunkRef) {
	t.Helper()
	store := NewChunkStore()
	refs := make(map[vec.Vec3]ChunkRef, len(locations))
	for _, loc := range locations {
		refs[loc] = store.Add(NewChunk(loc))
	}
	for _, ref := range refs {
		require.True(t, store.LinkNeighbors(ref))
	}
	return store, refs
}

func setWorldBlock(t *testing.T, store *ChunkStore, refs map[vec.Vec3]ChunkRef, loc, local vec.Vec3, bt block.BlockType) {
	t.Helper()
	chunk, ok := store.Chunk(refs[loc])
	require.True(t, ok)
	require.True(t, chunk.SetBlock(local, bt))
}

func TestResolveInsideAnchorChunk(t *testing.T) {
	store, refs := newLinkedStore(t, vec.Zero3, vec.Vec3{X: 1})
	anchor := refs[vec.Zero3]
	setWorldBlock(t, store, refs, vec.Zero3, vec.Vec3{X: 2, Y: 1, Z: 4}, block.Stone)

	var in BlockSearchInput
	var out BlockSearchOutput
	in.Reset()
	in.BasePos = vec.Vec3Float{X: 2.5, Y: 0.2, Z: 1.5}
	in.Area = anchor
	in.AreaPos = vec.Zero3
	in.Offset = vec.Vec3Float{X: 0, Y: 1, Z: 3}

	require.True(t, store.GetBlockAtPositionByOffset(&in, &out))
	assert.Equal(t, block.Stone, out.BlockType)
	assert.Equal(t, vec.Vec3{X: 2, Y: 1, Z: 4}, out.LocalPos)
	assert.Equal(t, anchor, out.ContainingArea, "Точка внутри чанка не должна уходить к соседям")
}

func TestResolveEveryInteriorPointStaysInAnchor(t *testing.T) {
	store, refs := newLinkedStore(t, vec.Vec3{X: -1, Y: -1, Z: -1})
	anchor := refs[vec.Vec3{X: -1, Y: -1, Z: -1}]
	origin := ChunkOrigin(vec.Vec3{X: -1, Y: -1, Z: -1})

	var out BlockSearchOutput
	for i := 0; i < ChunkVolume; i += 37 {
		local := BlockLocation(i)
		in := BlockSearchInput{
			BasePos: origin.ToFloat(),
			Area:    anchor,
			AreaPos: origin,
			Offset:  local.ToFloat().Add(vec.Vec3Float{X: 0.99, Y: 0.01, Z: 0.5}),
		}
		require.True(t, store.GetBlockAtPositionByOffset(&in, &out))
		assert.Equal(t, local, out.LocalPos)
		assert.Equal(t, anchor, out.ContainingArea)
	}
}

func TestResolveSingleAxisOverflow(t *testing.T) {
	locations := []vec.Vec3{vec.Zero3}
	for d := Direction(0); d < DirectionCount; d++ {
		locations = append(locations, d.Offset())
	}
	store, refs := newLinkedStore(t, locations...)
	anchor := refs[vec.Zero3]

	cases := []struct {
		offset   vec.Vec3Float
		neighbor vec.Vec3
		local    vec.Vec3
	}{
		{vec.Vec3Float{X: 16.5, Y: 3, Z: 3}, vec.Vec3{X: 1}, vec.Vec3{X: 0, Y: 3, Z: 3}},
		{vec.Vec3Float{X: 31.9, Y: 3, Z: 3}, vec.Vec3{X: 1}, vec.Vec3{X: 15, Y: 3, Z: 3}},
		{vec.Vec3Float{X: -0.5, Y: 3, Z: 3}, vec.Vec3{X: -1}, vec.Vec3{X: 15, Y: 3, Z: 3}},
		{vec.Vec3Float{X: 3, Y: 20, Z: 3}, vec.Vec3{Y: 1}, vec.Vec3{X: 3, Y: 4, Z: 3}},
		{vec.Vec3Float{X: 3, Y: -15.5, Z: 3}, vec.Vec3{Y: -1}, vec.Vec3{X: 3, Y: 0, Z: 3}},
		{vec.Vec3Float{X: 3, Y: 3, Z: 16}, vec.Vec3{Z: 1}, vec.Vec3{X: 3, Y: 3, Z: 0}},
		{vec.Vec3Float{X: 3, Y: 3, Z: -1}, vec.Vec3{Z: -1}, vec.Vec3{X: 3, Y: 3, Z: 15}},
	}

	var out BlockSearchOutput
	for _, c := range cases {
		in := BlockSearchInput{Area: anchor, AreaPos: vec.Zero3, Offset: c.offset}
		require.True(t, store.GetBlockAtPositionByOffset(&in, &out), "Смещение %+v должно разрешиться", c.offset)
		assert.Equal(t, refs[c.neighbor], out.ContainingArea, "Неверный сосед для %+v", c.offset)
		assert.Equal(t, c.local, out.LocalPos, "Адрес должен быть пересчитан относительно соседа для %+v", c.offset)
	}
}

func TestResolveMissingNeighborReturnsNoResult(t *testing.T) {
	store, refs := newLinkedStore(t, vec.Zero3, vec.Vec3{X: 1})
	anchor := refs[vec.Zero3]

	var out BlockSearchOutput
	in := BlockSearchInput{Area: anchor, AreaPos: vec.Zero3, Offset: vec.Vec3Float{X: 20, Y: 0, Z: 0}}
	require.True(t, store.GetBlockAtPositionByOffset(&in, &out))

	// Следующий запрос уходит в незагруженную область: результат не должен быть устаревшим
	in.Offset = vec.Vec3Float{X: 3, Y: 3, Z: -3}
	assert.False(t, store.GetBlockAtPositionByOffset(&in, &out))
	assert.Equal(t, NoChunk, out.ContainingArea)
	assert.Equal(t, vec.Splat3(-1), out.LocalPos)
	assert.Equal(t, block.Air, out.BlockType)
}

func TestResolveRejectsNonFinitePoints(t *testing.T) {
	store, refs := newLinkedStore(t, vec.Zero3)
	anchor := refs[vec.Zero3]

	var out BlockSearchOutput
	for _, offset := range []vec.Vec3Float{
		{X: math.NaN()},
		{Y: math.Inf(1)},
		{Z: math.Inf(-1)},
		{X: 1e19},
	} {
		in := BlockSearchInput{Area: anchor, AreaPos: vec.Zero3, Offset: offset}
		assert.False(t, store.GetBlockAtPositionByOffset(&in, &out), "Смещение %+v не разрешается", offset)
		assert.Equal(t, NoChunk, out.ContainingArea)
	}

	_, _, ok := store.ChunkAt(vec.Vec3Float{X: math.NaN()})
	assert.False(t, ok)
}

func TestResolveSelfLinkedRingIsBounded(t *testing.T) {
	store := NewChunkStore()
	ref := store.Add(NewChunk(vec.Zero3))
	require.True(t, store.SetNeighbor(ref, East, ref))

	var out BlockSearchOutput
	in := BlockSearchInput{Area: ref, AreaPos: vec.Zero3, Offset: vec.Vec3Float{X: 20, Y: 1, Z: 1}}
	require.True(t, store.GetBlockAtPositionByOffset(&in, &out), "Один переход по кольцу разрешается")
	assert.Equal(t, ref, out.ContainingArea)
	assert.Equal(t, vec.Vec3{X: 4, Y: 1, Z: 1}, out.LocalPos)

	in.Offset = vec.Vec3Float{X: 1e9, Y: 1, Z: 1}
	assert.False(t, store.GetBlockAtPositionByOffset(&in, &out), "Дальняя точка не обходит кольцо миллионы раз")
	assert.Equal(t, NoChunk, out.ContainingArea)
}

func TestResolveStaleAnchor(t *testing.T) {
	store, refs := newLinkedStore(t, vec.Zero3)
	anchor := refs[vec.Zero3]
	store.Remove(anchor)

	var out BlockSearchOutput
	in := BlockSearchInput{Area: anchor, AreaPos: vec.Zero3}
	assert.False(t, store.GetBlockAtPositionByOffset(&in, &out))

	in.Area = NoChunk
	assert.False(t, store.GetBlockAtPositionByOffset(&in, &out))
}

func TestResolveMultiHopTraversal(t *testing.T) {
	store, refs := newLinkedStore(t,
		vec.Zero3,
		vec.Vec3{X: 1},
		vec.Vec3{X: 2},
		vec.Vec3{X: 2, Z: 1},
	)
	target := vec.Vec3{X: 2, Z: 1}
	setWorldBlock(t, store, refs, target, vec.Vec3{X: 1, Y: 5, Z: 2}, block.Gem)

	var out BlockSearchOutput
	in := BlockSearchInput{
		BasePos: vec.Vec3Float{X: 1, Y: 1, Z: 1},
		Area:    refs[vec.Zero3],
		AreaPos: vec.Zero3,
		Offset:  vec.Vec3Float{X: 32, Y: 4, Z: 17},
	}
	require.True(t, store.GetBlockAtPositionByOffset(&in, &out))
	assert.Equal(t, refs[target], out.ContainingArea)
	assert.Equal(t, vec.Vec3{X: 1, Y: 5, Z: 2}, out.LocalPos)
	assert.Equal(t, block.Gem, out.BlockType)
}

func TestResolveDiagonalNeedsIntermediateChunk(t *testing.T) {
	// Диагональный чанк загружен, но промежуточный по оси X - нет
	store, refs := newLinkedStore(t, vec.Zero3, vec.Vec3{X: 1, Z: 1}, vec.Vec3{Z: 1})

	var out BlockSearchOutput
	in := BlockSearchInput{Area: refs[vec.Zero3], AreaPos: vec.Zero3, Offset: vec.Vec3Float{X: 17, Y: 0, Z: 17}}
	assert.False(t, store.GetBlockAtPositionByOffset(&in, &out), "Переход по X требует загруженного соседа по X")
}

func TestGetBlockAtPosition(t *testing.T) {
	store, refs := newLinkedStore(t, vec.Vec3{X: -1})
	setWorldBlock(t, store, refs, vec.Vec3{X: -1}, vec.Vec3{X: 15, Y: 0, Z: 0}, block.Wood)

	var out BlockSearchOutput
	require.True(t, store.GetBlockAtPosition(vec.Vec3Float{X: -0.25, Y: 0.5, Z: 0.5}, &out))
	assert.Equal(t, block.Wood, out.BlockType)

	assert.False(t, store.GetBlockAtPosition(vec.Vec3Float{X: 5, Y: 0, Z: 0}, &out))
}
