package replication

import (
	"testing"

	"github.com/annel0/opencraft/internal/vec"
	"github.com/annel0/opencraft/internal/world"
	"github.com/annel0/opencraft/internal/world/block"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := NewCodec()
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestCodecPreservesChunk(t *testing.T) {
	codec := newCodec(t)

	chunk := world.NewChunk(vec.Vec3{X: -3, Y: 1, Z: 70000})
	chunk.Fill(block.Stone)
	chunk.SetBlock(vec.Vec3{X: 2, Y: 1, Z: 4}, block.Gem)
	chunk.SetBlock(vec.Vec3{X: 15, Y: 15, Z: 15}, block.OnLamp)

	data := codec.Encode(SnapshotOf(chunk, 9))
	assert.Less(t, len(data), world.ChunkVolume, "Однородный чанк должен сжиматься")

	got, err := codec.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, chunk.Location, got.Location, "Отрицательные и большие координаты сохраняются")
	assert.Equal(t, uint64(9), got.Epoch)
	assert.Equal(t, chunk.Blocks, got.Blocks)
}

func TestSnapshotIsCopy(t *testing.T) {
	chunk := world.NewChunk(vec.Zero3)
	snapshot := SnapshotOf(chunk, 1)
	chunk.Fill(block.Dirt)

	assert.Equal(t, block.Air, snapshot.Blocks[0], "Снимок не должен разделять буфер с чанком")
}

func TestCodecRejectsCorruptData(t *testing.T) {
	codec := newCodec(t)
	valid := codec.Encode(SnapshotOf(world.NewChunk(vec.Zero3), 1))

	tests := []struct {
		name string
		data []byte
	}{
		{"пусто", nil},
		{"короткий заголовок", valid[:10]},
		{"чужая сигнатура", append([]byte("XXXX"), valid[4:]...)},
		{"обрезанное тело", valid[:len(valid)-3]},
		{"мусор вместо zstd", append(append([]byte{}, valid[:headerSize]...), 1, 2, 3, 4, 5)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := codec.Decode(tt.data)
			assert.ErrorIs(t, err, ErrCorruptSnapshot)
		})
	}
}

func TestCodecRejectsUnknownBlocks(t *testing.T) {
	codec := newCodec(t)
	snapshot := SnapshotOf(world.NewChunk(vec.Zero3), 1)
	snapshot.Blocks[100] = block.BlockType(200)

	_, err := codec.Decode(codec.Encode(snapshot))
	assert.ErrorIs(t, err, ErrCorruptSnapshot)
}

func TestSnapshotApply(t *testing.T) {
	src := world.NewChunk(vec.Vec3{Y: 1})
	src.Fill(block.Wood)
	snapshot := SnapshotOf(src, 3)

	dst := world.NewChunk(vec.Vec3{Y: 1})
	before := dst.ChangeCounter()
	require.NoError(t, snapshot.Apply(dst))
	assert.Equal(t, src.Blocks, dst.Blocks)
	assert.Greater(t, dst.ChangeCounter(), before)

	assert.Error(t, snapshot.Apply(world.NewChunk(vec.Zero3)), "Снимок нельзя применить к чужому чанку")
}
