package player

import (
	"github.com/annel0/opencraft/internal/vec"
	"github.com/annel0/opencraft/internal/world"
)

// Input - ориентация камеры наблюдателя в радианах
type Input struct {
	Yaw   float64 `json:"yaw"`
	Pitch float64 `json:"pitch"`
}

// SelectedBlock - результат выделения за тик.
// Пересчитывается с нуля каждый тик и не переносится между тиками.
type SelectedBlock struct {
	BlockLoc            vec.Vec3       `json:"block_loc"`
	TerrainArea         world.ChunkRef `json:"-"`
	NeighborBlockLoc    vec.Vec3       `json:"neighbor_block_loc"`
	NeighborTerrainArea world.ChunkRef `json:"-"`
}

// noBlock - локальный адрес "нет блока"
var noBlock = vec.Vec3{X: -1, Y: -1, Z: -1}

// Reset сбрасывает выделение и соседа в "нет"
func (s *SelectedBlock) Reset() {
	s.BlockLoc = noBlock
	s.TerrainArea = world.NoChunk
	s.NeighborBlockLoc = noBlock
	s.NeighborTerrainArea = world.NoChunk
}

// HasSelection сообщает, выделен ли твёрдый блок
func (s SelectedBlock) HasSelection() bool {
	return !s.TerrainArea.IsNull()
}

// HasNeighbor сообщает, найдена ли пустая клетка перед выделением.
// Клетка пригодна как цель для установки блока.
func (s SelectedBlock) HasNeighbor() bool {
	return !s.NeighborTerrainArea.IsNull()
}

// Player - наблюдатель в мире
type Player struct {
	ID       uint64        `json:"id"`
	Name     string        `json:"name"`
	Position vec.Vec3Float `json:"position"`
	Input    Input         `json:"input"`

	// Чанк, к которому привязан наблюдатель, и мировые координаты его угла
	ContainingArea         world.ChunkRef `json:"-"`
	ContainingAreaLocation vec.Vec3       `json:"containing_area_location"`

	Selected SelectedBlock `json:"selected"`
}

// NewPlayer создаёт наблюдателя без привязки к чанку
func NewPlayer(id uint64, name string, position vec.Vec3Float) *Player {
	p := &Player{
		ID:       id,
		Name:     name,
		Position: position,
	}
	p.Selected.Reset()
	return p
}

// HasContainingArea сообщает, привязан ли наблюдатель к загруженному чанку
func (p *Player) HasContainingArea() bool {
	return !p.ContainingArea.IsNull()
}
