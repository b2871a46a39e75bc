package player

import (
	"runtime"
	"sync/atomic"

	"github.com/annel0/opencraft/internal/vec"
	"github.com/annel0/opencraft/internal/world"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultRaycastLength - число шагов луча выделения
	DefaultRaycastLength = 5
	// DefaultCameraYOffset - высота камеры над позицией наблюдателя
	DefaultCameraYOffset = 1.0
)

// ScanResult - исход сканирования для одного наблюдателя
type ScanResult uint8

const (
	ScanSkipped   ScanResult = iota // Наблюдатель не привязан к чанку
	ScanFound                       // Найден твёрдый блок
	ScanExhausted                   // Луч закончился без попадания
)

func (r ScanResult) String() string {
	switch r {
	case ScanFound:
		return "found"
	case ScanExhausted:
		return "exhausted"
	}
	return "skipped"
}

// ScanStats - сводка прохода выделения за тик
type ScanStats struct {
	Scanned int `json:"scanned"`
	Skipped int `json:"skipped"`
	Hits    int `json:"hits"`
}

// SelectionScanner ищет первый твёрдый блок вдоль луча взгляда наблюдателя.
// Сканер только читает данные чанков и пишет только в выделение наблюдателя.
type SelectionScanner struct {
	store         *world.ChunkStore
	raycastLength int
	cameraOffset  vec.Vec3Float
	workers       int
}

// ScannerOption настраивает SelectionScanner
type ScannerOption func(*SelectionScanner)

// WithRaycastLength задаёт число шагов луча
func WithRaycastLength(n int) ScannerOption {
	return func(s *SelectionScanner) {
		if n > 0 {
			s.raycastLength = n
		}
	}
}

// WithCameraYOffset задаёт высоту камеры над позицией наблюдателя
func WithCameraYOffset(y float64) ScannerOption {
	return func(s *SelectionScanner) {
		s.cameraOffset = vec.Vec3Float{Y: y}
	}
}

// WithWorkers ограничивает число параллельных сканирований
func WithWorkers(n int) ScannerOption {
	return func(s *SelectionScanner) {
		if n > 0 {
			s.workers = n
		}
	}
}

// NewSelectionScanner создаёт сканер поверх хранилища чанков
func NewSelectionScanner(store *world.ChunkStore, opts ...ScannerOption) *SelectionScanner {
	s := &SelectionScanner{
		store:         store,
		raycastLength: DefaultRaycastLength,
		cameraOffset:  vec.Vec3Float{Y: DefaultCameraYOffset},
		workers:       runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RaycastLength возвращает число шагов луча
func (s *SelectionScanner) RaycastLength() int {
	return s.raycastLength
}

// Scan пересчитывает выделение наблюдателя.
//
// Выделение сбрасывается, затем на шаге i запрашивается блок по смещению
// cameraOffset + direction*i. Шаг в незагруженную область пропускается,
// сканирование продолжается. Первый твёрдый блок становится выделением,
// последняя пустая клетка перед ним - соседом.
func (s *SelectionScanner) Scan(p *Player) ScanResult {
	p.Selected.Reset()
	if !p.HasContainingArea() {
		return ScanSkipped
	}

	direction := p.Input.Direction()

	var in world.BlockSearchInput
	var out world.BlockSearchOutput
	for i := 0; i < s.raycastLength; i++ {
		in.Reset()
		in.BasePos = p.Position
		in.Area = p.ContainingArea
		in.AreaPos = p.ContainingAreaLocation
		in.Offset = s.cameraOffset.Add(direction.Mul(float64(i)))

		if !s.store.GetBlockAtPositionByOffset(&in, &out) {
			continue
		}

		if !out.BlockType.IsAir() {
			p.Selected.BlockLoc = out.LocalPos
			p.Selected.TerrainArea = out.ContainingArea
			return ScanFound
		}

		p.Selected.NeighborBlockLoc = out.LocalPos
		p.Selected.NeighborTerrainArea = out.ContainingArea
	}

	return ScanExhausted
}

// ScanAll сканирует всех наблюдателей параллельно.
// Каждый наблюдатель обрабатывается ровно одной горутиной, и каждое
// сканирование доходит до конца: прервать проход нельзя.
func (s *SelectionScanner) ScanAll(players []*Player) ScanStats {
	var scanned, skipped, hits atomic.Int64

	var g errgroup.Group
	g.SetLimit(s.workers)
	for _, p := range players {
		p := p
		g.Go(func() error {
			switch s.Scan(p) {
			case ScanSkipped:
				skipped.Add(1)
			case ScanFound:
				hits.Add(1)
				scanned.Add(1)
			default:
				scanned.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	return ScanStats{
		Scanned: int(scanned.Load()),
		Skipped: int(skipped.Load()),
		Hits:    int(hits.Load()),
	}
}
