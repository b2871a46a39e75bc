package world

import (
	"sync/atomic"

	"github.com/annel0/opencraft/internal/vec"
	"github.com/annel0/opencraft/internal/world/block"
)

const (
	// ChunkSize - размер чанка по каждой оси в блоках
	ChunkSize = 16
	// ChunkVolume - количество блоков в чанке
	ChunkVolume = ChunkSize * ChunkSize * ChunkSize
)

// Chunk представляет кубический участок мира размером 16x16x16 блоков
type Chunk struct {
	Location vec.Vec3 // Координаты чанка в сетке чанков

	// Blocks плотный буфер блоков, индексируется через BlockIndex
	Blocks []block.BlockType

	changeCounter atomic.Uint64 // Счетчик изменений буфера
	remeshEpoch   atomic.Uint64 // Последняя выданная эпоха инвалидации
	meshedEpoch   atomic.Uint64 // Последняя эпоха, подтвержденная потребителем
}

// NewChunk создаёт новый пустой чанк с указанными координатами
func NewChunk(location vec.Vec3) *Chunk {
	return &Chunk{
		Location: location,
		Blocks:   make([]block.BlockType, ChunkVolume),
	}
}

// Origin возвращает мировые координаты угла чанка
func (c *Chunk) Origin() vec.Vec3 {
	return ChunkOrigin(c.Location)
}

// ChunkOrigin возвращает мировые координаты угла чанка по его координатам в сетке
func ChunkOrigin(location vec.Vec3) vec.Vec3 {
	return location.Scale(ChunkSize)
}

// InChunk проверяет, лежит ли локальный адрес внутри чанка по всем трём осям
func InChunk(local vec.Vec3) bool {
	return local.X >= 0 && local.X < ChunkSize &&
		local.Y >= 0 && local.Y < ChunkSize &&
		local.Z >= 0 && local.Z < ChunkSize
}

// BlockIndex переводит локальный адрес в индекс буфера.
// Адрес должен лежать внутри чанка (см. InChunk).
func BlockIndex(local vec.Vec3) int {
	return local.X + local.Y*ChunkSize + local.Z*ChunkSize*ChunkSize
}

// BlockLocation выполняет обратное к BlockIndex преобразование
func BlockLocation(index int) vec.Vec3 {
	return vec.Vec3{
		X: index % ChunkSize,
		Y: (index / ChunkSize) % ChunkSize,
		Z: index / (ChunkSize * ChunkSize),
	}
}

// GetBlock возвращает блок по локальным координатам.
// Для адресов вне чанка возвращает Air и false.
func (c *Chunk) GetBlock(local vec.Vec3) (block.BlockType, bool) {
	if !InChunk(local) {
		return block.Air, false
	}
	return c.Blocks[BlockIndex(local)], true
}

// SetBlock устанавливает блок по локальным координатам
func (c *Chunk) SetBlock(local vec.Vec3, t block.BlockType) bool {
	if !InChunk(local) {
		return false
	}
	c.Blocks[BlockIndex(local)] = t
	c.changeCounter.Add(1)
	return true
}

// CopyFrom заменяет весь буфер блоков. Длина должна совпадать с ChunkVolume.
func (c *Chunk) CopyFrom(blocks []block.BlockType) bool {
	if len(blocks) != len(c.Blocks) {
		return false
	}
	copy(c.Blocks, blocks)
	c.touch()
	return true
}

// Fill заполняет весь чанк одним типом блока
func (c *Chunk) Fill(t block.BlockType) {
	for i := range c.Blocks {
		c.Blocks[i] = t
	}
	c.changeCounter.Add(1)
}

// CountSolid возвращает количество непустых блоков
func (c *Chunk) CountSolid() int {
	count := 0
	for _, b := range c.Blocks {
		if !b.IsAir() {
			count++
		}
	}
	return count
}

// ChangeCounter возвращает количество изменений буфера
func (c *Chunk) ChangeCounter() uint64 {
	return c.changeCounter.Load()
}

// touch отмечает изменение буфера, выполненное через MutableBlocks
func (c *Chunk) touch() {
	c.changeCounter.Add(1)
}
