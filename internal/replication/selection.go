package replication

import (
	"encoding/json"
	"fmt"

	"github.com/annel0/opencraft/internal/player"
	"github.com/annel0/opencraft/internal/vec"
	"github.com/annel0/opencraft/internal/world"
)

// SelectionSnapshot - переносимое выделение наблюдателя.
// Ссылки на чанки заменены координатами сетки: ссылки локальны для процесса.
type SelectionSnapshot struct {
	PlayerID      uint64    `json:"id"`
	Block         *vec.Vec3 `json:"b,omitempty"`
	BlockChunk    *vec.Vec3 `json:"bc,omitempty"`
	Neighbor      *vec.Vec3 `json:"n,omitempty"`
	NeighborChunk *vec.Vec3 `json:"nc,omitempty"`
}

// SelectionOf переводит выделение наблюдателя в снимок
func SelectionOf(store *world.ChunkStore, p player.Player) SelectionSnapshot {
	s := SelectionSnapshot{PlayerID: p.ID}
	if chunk, ok := store.Chunk(p.Selected.TerrainArea); ok {
		loc, at := p.Selected.BlockLoc, chunk.Location
		s.Block, s.BlockChunk = &loc, &at
	}
	if chunk, ok := store.Chunk(p.Selected.NeighborTerrainArea); ok {
		loc, at := p.Selected.NeighborBlockLoc, chunk.Location
		s.Neighbor, s.NeighborChunk = &loc, &at
	}
	return s
}

// HasSelection сообщает, содержит ли снимок выделенный блок
func (s SelectionSnapshot) HasSelection() bool {
	return s.Block != nil && s.BlockChunk != nil
}

// Resolve восстанавливает выделение по локальному хранилищу реплики.
// Части, чьи чанки не загружены у реплики, остаются "нет".
func (s SelectionSnapshot) Resolve(store *world.ChunkStore) player.SelectedBlock {
	var sel player.SelectedBlock
	sel.Reset()
	if s.HasSelection() {
		if ref, ok := store.Lookup(*s.BlockChunk); ok {
			sel.BlockLoc, sel.TerrainArea = *s.Block, ref
		}
	}
	if s.Neighbor != nil && s.NeighborChunk != nil {
		if ref, ok := store.Lookup(*s.NeighborChunk); ok {
			sel.NeighborBlockLoc, sel.NeighborTerrainArea = *s.Neighbor, ref
		}
	}
	return sel
}

// EncodeSelections сериализует снимки выделения в JSON
func EncodeSelections(snapshots []SelectionSnapshot) ([]byte, error) {
	data, err := json.Marshal(snapshots)
	if err != nil {
		return nil, fmt.Errorf("кодирование выделений: %w", err)
	}
	return data, nil
}

// DecodeSelections разбирает снимки выделения
func DecodeSelections(data []byte) ([]SelectionSnapshot, error) {
	var snapshots []SelectionSnapshot
	if err := json.Unmarshal(data, &snapshots); err != nil {
		return nil, fmt.Errorf("разбор выделений: %w", err)
	}
	return snapshots, nil
}
