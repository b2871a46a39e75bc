// Package replication упаковывает состояние мира для передачи репликам.
package replication

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/annel0/opencraft/internal/vec"
	"github.com/annel0/opencraft/internal/world"
	"github.com/annel0/opencraft/internal/world/block"
	"github.com/klauspost/compress/zstd"
)

// ErrCorruptSnapshot возвращается при разборе повреждённого снимка
var ErrCorruptSnapshot = errors.New("replication: повреждённый снимок чанка")

// snapshotMagic открывает каждый снимок чанка
var snapshotMagic = [4]byte{'O', 'C', 'S', '1'}

// Заголовок: magic(4) + x,y,z int32(12) + epoch uint64(8) + rawLen uint32(4)
const headerSize = 4 + 12 + 8 + 4

// ChunkSnapshot - копия буфера блоков чанка на момент перестроения
type ChunkSnapshot struct {
	Location vec.Vec3
	Epoch    uint64
	Blocks   []block.BlockType
}

// SnapshotOf копирует блоки чанка
func SnapshotOf(chunk *world.Chunk, epoch uint64) ChunkSnapshot {
	blocks := make([]block.BlockType, len(chunk.Blocks))
	copy(blocks, chunk.Blocks)
	return ChunkSnapshot{Location: chunk.Location, Epoch: epoch, Blocks: blocks}
}

// Apply переносит блоки снимка в чанк с теми же координатами
func (s ChunkSnapshot) Apply(chunk *world.Chunk) error {
	if chunk.Location != s.Location {
		return fmt.Errorf("снимок %v применяется к чанку %v", s.Location, chunk.Location)
	}
	if !chunk.CopyFrom(s.Blocks) {
		return fmt.Errorf("%w: %d блоков", ErrCorruptSnapshot, len(s.Blocks))
	}
	return nil
}

// Codec кодирует снимки чанков: короткий заголовок и блоки, сжатые zstd.
// Методы безопасны для конкурентного использования.
type Codec struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewCodec создаёт кодек
func NewCodec() (*Codec, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("создание zstd кодировщика: %w", err)
	}
	decoder, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(world.ChunkVolume*4))
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("создание zstd декодера: %w", err)
	}
	return &Codec{encoder: encoder, decoder: decoder}, nil
}

// Close освобождает ресурсы кодека
func (c *Codec) Close() {
	_ = c.encoder.Close()
	c.decoder.Close()
}

// Encode сериализует снимок
func (c *Codec) Encode(s ChunkSnapshot) []byte {
	raw := make([]byte, len(s.Blocks))
	for i, t := range s.Blocks {
		raw[i] = byte(t)
	}

	out := make([]byte, headerSize, headerSize+len(raw)/4)
	copy(out[0:4], snapshotMagic[:])
	binary.LittleEndian.PutUint32(out[4:8], uint32(int32(s.Location.X)))
	binary.LittleEndian.PutUint32(out[8:12], uint32(int32(s.Location.Y)))
	binary.LittleEndian.PutUint32(out[12:16], uint32(int32(s.Location.Z)))
	binary.LittleEndian.PutUint64(out[16:24], s.Epoch)
	binary.LittleEndian.PutUint32(out[24:28], uint32(len(raw)))
	return c.encoder.EncodeAll(raw, out)
}

// Decode разбирает снимок и проверяет его целостность
func (c *Codec) Decode(data []byte) (ChunkSnapshot, error) {
	if len(data) < headerSize || [4]byte(data[0:4]) != snapshotMagic {
		return ChunkSnapshot{}, fmt.Errorf("%w: неверный заголовок", ErrCorruptSnapshot)
	}

	s := ChunkSnapshot{
		Location: vec.Vec3{
			X: int(int32(binary.LittleEndian.Uint32(data[4:8]))),
			Y: int(int32(binary.LittleEndian.Uint32(data[8:12]))),
			Z: int(int32(binary.LittleEndian.Uint32(data[12:16]))),
		},
		Epoch: binary.LittleEndian.Uint64(data[16:24]),
	}
	rawLen := binary.LittleEndian.Uint32(data[24:28])
	if rawLen != world.ChunkVolume {
		return ChunkSnapshot{}, fmt.Errorf("%w: %d блоков", ErrCorruptSnapshot, rawLen)
	}

	raw, err := c.decoder.DecodeAll(data[headerSize:], make([]byte, 0, rawLen))
	if err != nil {
		return ChunkSnapshot{}, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	if uint32(len(raw)) != rawLen {
		return ChunkSnapshot{}, fmt.Errorf("%w: длина %d, в заголовке %d", ErrCorruptSnapshot, len(raw), rawLen)
	}

	s.Blocks = make([]block.BlockType, len(raw))
	for i, b := range raw {
		t := block.BlockType(b)
		if !t.Valid() {
			return ChunkSnapshot{}, fmt.Errorf("%w: блок %d в позиции %d", ErrCorruptSnapshot, b, i)
		}
		s.Blocks[i] = t
	}
	return s, nil
}
