package world

import (
	"fmt"
	"sort"
	"sync"

	"github.com/annel0/opencraft/internal/vec"
	"github.com/annel0/opencraft/internal/world/block"
)

// ChunkRef - слабая ссылка на загруженный чанк.
// Нулевое значение (NoChunk) означает "чанк не загружен".
// Ссылка на выгруженный чанк перестаёт разрешаться, даже если слот переиспользован.
type ChunkRef struct {
	index      uint32
	generation uint32
}

// NoChunk - пустая ссылка
var NoChunk = ChunkRef{}

// IsNull проверяет, является ли ссылка пустой
func (r ChunkRef) IsNull() bool {
	return r.generation == 0
}

func (r ChunkRef) String() string {
	if r.IsNull() {
		return "chunk(null)"
	}
	return fmt.Sprintf("chunk(%d:%d)", r.index, r.generation)
}

// chunkSlot - ячейка арены загруженных чанков
type chunkSlot struct {
	chunk      *Chunk
	generation uint32
	neighbors  [DirectionCount]ChunkRef // Слабые ссылки на соседей
}

// ChunkStore хранит загруженные чанки и индекс соседства между ними.
//
// Мьютекс защищает только топологию (загрузку, выгрузку, связи).
// Буферы блоков не блокируются: запись и чтение разнесены по фазам тика.
type ChunkStore struct {
	mu         sync.RWMutex
	slots      []chunkSlot
	free       []uint32
	byLocation map[vec.Vec3]ChunkRef
}

// NewChunkStore создаёт пустое хранилище чанков
func NewChunkStore() *ChunkStore {
	return &ChunkStore{
		byLocation: make(map[vec.Vec3]ChunkRef),
	}
}

// Add загружает чанк и возвращает ссылку на него.
// Если на этих координатах уже был чанк, он выгружается.
// Соседство не разрешается автоматически, см. LinkNeighbors.
func (s *ChunkStore) Add(chunk *Chunk) ChunkRef {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, exists := s.byLocation[chunk.Location]; exists {
		s.removeLocked(old)
	}

	var index uint32
	if n := len(s.free); n > 0 {
		index = s.free[n-1]
		s.free = s.free[:n-1]
	} else {
		index = uint32(len(s.slots))
		s.slots = append(s.slots, chunkSlot{})
	}

	slot := &s.slots[index]
	slot.generation++
	slot.chunk = chunk
	slot.neighbors = [DirectionCount]ChunkRef{}

	ref := ChunkRef{index: index, generation: slot.generation}
	s.byLocation[chunk.Location] = ref
	return ref
}

// Remove выгружает чанк. Ссылки на него перестают разрешаться.
func (s *ChunkStore) Remove(ref ChunkRef) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.removeLocked(ref)
}

func (s *ChunkStore) removeLocked(ref ChunkRef) bool {
	slot, ok := s.slotLocked(ref)
	if !ok {
		return false
	}

	// Снимаем обратные ссылки у соседей
	for d := Direction(0); d < DirectionCount; d++ {
		if neighbor, ok := s.slotLocked(slot.neighbors[d]); ok {
			if neighbor.neighbors[d.Opposite()] == ref {
				neighbor.neighbors[d.Opposite()] = NoChunk
			}
		}
	}

	delete(s.byLocation, slot.chunk.Location)
	slot.chunk = nil
	slot.neighbors = [DirectionCount]ChunkRef{}
	s.free = append(s.free, ref.index)
	return true
}

// slotLocked разрешает ссылку. Вызывается под мьютексом.
func (s *ChunkStore) slotLocked(ref ChunkRef) (*chunkSlot, bool) {
	if ref.IsNull() || int(ref.index) >= len(s.slots) {
		return nil, false
	}
	slot := &s.slots[ref.index]
	if slot.chunk == nil || slot.generation != ref.generation {
		return nil, false
	}
	return slot, true
}

// LinkNeighbors разрешает шесть соседей чанка по координатам сетки
// и проставляет симметричные обратные ссылки у найденных соседей.
func (s *ChunkStore) LinkNeighbors(ref ChunkRef) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot, ok := s.slotLocked(ref)
	if !ok {
		return false
	}

	for d := Direction(0); d < DirectionCount; d++ {
		other, exists := s.byLocation[slot.chunk.Location.Add(d.Offset())]
		if !exists {
			slot.neighbors[d] = NoChunk
			continue
		}
		slot.neighbors[d] = other
		if neighbor, ok := s.slotLocked(other); ok {
			neighbor.neighbors[d.Opposite()] = ref
		}
	}
	return true
}

// SetNeighbor задаёт одну направленную связь. Обратная связь не создаётся,
// поэтому граф может быть несимметричным.
func (s *ChunkStore) SetNeighbor(ref ChunkRef, dir Direction, other ChunkRef) bool {
	if dir >= DirectionCount {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	slot, ok := s.slotLocked(ref)
	if !ok {
		return false
	}
	slot.neighbors[dir] = other
	return true
}

// Neighbor возвращает соседа в указанном направлении.
// Отсутствующий или выгруженный сосед - не ошибка, а "не загружен".
func (s *ChunkStore) Neighbor(ref ChunkRef, dir Direction) (ChunkRef, bool) {
	if dir >= DirectionCount {
		return NoChunk, false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.neighborLocked(ref, dir)
}

func (s *ChunkStore) neighborLocked(ref ChunkRef, dir Direction) (ChunkRef, bool) {
	slot, ok := s.slotLocked(ref)
	if !ok {
		return NoChunk, false
	}
	next := slot.neighbors[dir]
	if _, ok := s.slotLocked(next); !ok {
		return NoChunk, false
	}
	return next, true
}

// Lookup возвращает ссылку на чанк по координатам сетки
func (s *ChunkStore) Lookup(location vec.Vec3) (ChunkRef, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ref, ok := s.byLocation[location]
	return ref, ok
}

// Chunk возвращает чанк по ссылке
func (s *ChunkStore) Chunk(ref ChunkRef) (*Chunk, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	slot, ok := s.slotLocked(ref)
	if !ok {
		return nil, false
	}
	return slot.chunk, true
}

// Blocks возвращает буфер блоков чанка только для чтения
func (s *ChunkStore) Blocks(ref ChunkRef) ([]block.BlockType, bool) {
	chunk, ok := s.Chunk(ref)
	if !ok {
		return nil, false
	}
	return chunk.Blocks, true
}

// MutableBlocks возвращает буфер блоков чанка для записи.
// Писатель в течение фазы должен быть единственным.
func (s *ChunkStore) MutableBlocks(ref ChunkRef) ([]block.BlockType, bool) {
	chunk, ok := s.Chunk(ref)
	if !ok {
		return nil, false
	}
	chunk.touch()
	return chunk.Blocks, true
}

// ChunkAt находит загруженный чанк, содержащий мировую точку.
// Возвращает ссылку и мировые координаты угла чанка.
func (s *ChunkStore) ChunkAt(pos vec.Vec3Float) (ChunkRef, vec.Vec3, bool) {
	point, ok := pos.FloorChecked()
	if !ok {
		return NoChunk, vec.Vec3{}, false
	}
	location := point.FloorDiv(ChunkSize)
	ref, ok := s.Lookup(location)
	if !ok {
		return NoChunk, vec.Vec3{}, false
	}
	return ref, ChunkOrigin(location), true
}

// Len возвращает количество загруженных чанков
func (s *ChunkStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.byLocation)
}

// Refs возвращает ссылки на все загруженные чанки в порядке координат
func (s *ChunkStore) Refs() []ChunkRef {
	s.mu.RLock()
	locations := make([]vec.Vec3, 0, len(s.byLocation))
	for loc := range s.byLocation {
		locations = append(locations, loc)
	}
	refs := make([]ChunkRef, 0, len(locations))
	sortLocations(locations)
	for _, loc := range locations {
		refs = append(refs, s.byLocation[loc])
	}
	s.mu.RUnlock()

	return refs
}

// ForEach вызывает fn для каждого загруженного чанка в порядке координат.
// Топология не блокируется на время обхода.
func (s *ChunkStore) ForEach(fn func(ref ChunkRef, chunk *Chunk) bool) {
	for _, ref := range s.Refs() {
		chunk, ok := s.Chunk(ref)
		if !ok {
			continue
		}
		if !fn(ref, chunk) {
			return
		}
	}
}

// sortLocations упорядочивает координаты по X, затем Y, затем Z
func sortLocations(locations []vec.Vec3) {
	sort.Slice(locations, func(i, j int) bool {
		a, b := locations[i], locations[j]
		if a.X != b.X {
			return a.X < b.X
		}
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.Z < b.Z
	})
}
