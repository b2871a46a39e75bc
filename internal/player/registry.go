package player

import (
	"errors"
	"sort"
	"sync"

	"github.com/annel0/opencraft/internal/vec"
	"github.com/annel0/opencraft/internal/world"
)

// ErrPlayerExists возвращается при повторном подключении с тем же ID
var ErrPlayerExists = errors.New("наблюдатель уже подключён")

// Registry хранит наблюдателей и сериализует доступ к их состоянию.
// Сканирование выполняется под блокировкой записи, поэтому чтение
// выделения из API никогда не видит наполовину пересчитанное состояние.
type Registry struct {
	mu      sync.RWMutex
	players map[uint64]*Player
}

// NewRegistry создаёт пустой реестр
func NewRegistry() *Registry {
	return &Registry{players: make(map[uint64]*Player)}
}

// Join добавляет наблюдателя
func (r *Registry) Join(id uint64, name string, position vec.Vec3Float) (*Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.players[id]; exists {
		return nil, ErrPlayerExists
	}
	p := NewPlayer(id, name, position)
	r.players[id] = p
	return p, nil
}

// Leave удаляет наблюдателя
func (r *Registry) Leave(id uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.players[id]; !exists {
		return false
	}
	delete(r.players, id)
	return true
}

// ApplyInput обновляет ориентацию камеры наблюдателя
func (r *Registry) ApplyInput(id uint64, in Input) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[id]
	if !ok {
		return false
	}
	p.Input = in
	return true
}

// Move обновляет позицию наблюдателя. Привязка к чанку пересчитывается
// в следующем UpdateContainingAreas.
func (r *Registry) Move(id uint64, position vec.Vec3Float) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[id]
	if !ok {
		return false
	}
	p.Position = position
	return true
}

// Get возвращает копию состояния наблюдателя
func (r *Registry) Get(id uint64) (Player, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.players[id]
	if !ok {
		return Player{}, false
	}
	return *p, true
}

// Len возвращает число наблюдателей
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.players)
}

// Snapshot возвращает копии всех наблюдателей, упорядоченные по ID
func (r *Registry) Snapshot() []Player {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Player, 0, len(r.players))
	for _, p := range r.sortedLocked() {
		out = append(out, *p)
	}
	return out
}

// ChunkLocations возвращает координаты чанков, содержащих наблюдателей
func (r *Registry) ChunkLocations() []vec.Vec3 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[vec.Vec3]struct{}, len(r.players))
	locations := make([]vec.Vec3, 0, len(r.players))
	for _, p := range r.sortedLocked() {
		loc := p.Position.Floor().FloorDiv(world.ChunkSize)
		if _, ok := seen[loc]; ok {
			continue
		}
		seen[loc] = struct{}{}
		locations = append(locations, loc)
	}
	return locations
}

// UpdateContainingAreas привязывает каждого наблюдателя к загруженному чанку
// по его позиции. Наблюдатель вне загруженной области отвязывается.
// Возвращает число привязанных и отвязанных наблюдателей.
func (r *Registry) UpdateContainingAreas(store *world.ChunkStore) (assigned, detached int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.players {
		ref, origin, ok := store.ChunkAt(p.Position)
		if !ok {
			p.ContainingArea = world.NoChunk
			p.ContainingAreaLocation = vec.Zero3
			detached++
			continue
		}
		p.ContainingArea = ref
		p.ContainingAreaLocation = origin
		assigned++
	}
	return assigned, detached
}

// Scan пересчитывает выделение всех наблюдателей
func (r *Registry) Scan(scanner *SelectionScanner) ScanStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	return scanner.ScanAll(r.sortedLocked())
}

func (r *Registry) sortedLocked() []*Player {
	list := make([]*Player, 0, len(r.players))
	for _, p := range r.players {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}
