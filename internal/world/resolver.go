package world

import (
	"github.com/annel0/opencraft/internal/vec"
	"github.com/annel0/opencraft/internal/world/block"
)

// BlockSearchInput описывает запрос поиска блока по смещению от позиции.
// Структура переиспользуется как временный буфер и сбрасывается перед каждым запросом.
type BlockSearchInput struct {
	BasePos vec.Vec3Float // Базовая мировая позиция
	Area    ChunkRef      // Чанк, к которому привязан запрос
	AreaPos vec.Vec3      // Мировые координаты угла этого чанка
	Offset  vec.Vec3Float // Смещение от базовой позиции
}

// Reset сбрасывает запрос к значениям по умолчанию
func (in *BlockSearchInput) Reset() {
	*in = BlockSearchInput{Area: NoChunk}
}

// BlockSearchOutput содержит результат поиска блока
type BlockSearchOutput struct {
	BlockType      block.BlockType // Найденный тип блока
	LocalPos       vec.Vec3        // Локальный адрес внутри ContainingArea
	ContainingArea ChunkRef        // Чанк, фактически содержащий блок
}

// Reset сбрасывает результат: адрес (-1,-1,-1), чанк не задан
func (out *BlockSearchOutput) Reset() {
	*out = BlockSearchOutput{
		BlockType:      block.Air,
		LocalPos:       vec.Splat3(-1),
		ContainingArea: NoChunk,
	}
}

// GetBlockAtPositionByOffset находит блок в точке BasePos+Offset.
//
// Точка переводится в локальный адрес относительно AreaPos. Пока адрес выходит
// за пределы чанка, поиск переходит к соседу в направлении выхода и пересчитывает
// адрес относительно него. Возвращает false, если нужный сосед не загружен:
// это штатный исход "здесь ничего нет", out при этом остаётся сброшенным.
// Точки с NaN, бесконечными или слишком большими координатами тоже дают false,
// как и обход длиннее трёх переходов на каждый загруженный чанк.
func (s *ChunkStore) GetBlockAtPositionByOffset(in *BlockSearchInput, out *BlockSearchOutput) bool {
	out.Reset()

	s.mu.RLock()
	defer s.mu.RUnlock()

	area := in.Area
	slot, ok := s.slotLocked(area)
	if !ok {
		return false
	}

	point, ok := in.BasePos.Add(in.Offset).FloorChecked()
	if !ok {
		return false
	}
	local := point.Sub(in.AreaPos)

	// Путь без циклов не длиннее числа чанков; кольцо связей не должно крутить поиск
	maxHops := int(DirectionCount) / 2 * len(s.byLocation)
	for hops := 0; ; hops++ {
		dir, overflow := overflowDirection(local)
		if !overflow {
			break
		}
		if hops >= maxHops {
			return false
		}
		next, ok := s.neighborLocked(area, dir)
		if !ok {
			return false
		}
		area = next
		slot, _ = s.slotLocked(next)
		local = local.Sub(dir.Offset().Scale(ChunkSize))
	}

	out.BlockType = slot.chunk.Blocks[BlockIndex(local)]
	out.LocalPos = local
	out.ContainingArea = area
	return true
}

// GetBlockAtPosition ищет блок в мировой точке без привязки к чанку запроса
func (s *ChunkStore) GetBlockAtPosition(pos vec.Vec3Float, out *BlockSearchOutput) bool {
	ref, origin, ok := s.ChunkAt(pos)
	if !ok {
		out.Reset()
		return false
	}

	in := BlockSearchInput{BasePos: pos, Area: ref, AreaPos: origin}
	return s.GetBlockAtPositionByOffset(&in, out)
}
