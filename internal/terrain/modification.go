// Package terrain содержит авторитетные изменения блоков чанков.
package terrain

import (
	"context"

	"github.com/annel0/opencraft/internal/eventbus"
	"github.com/annel0/opencraft/internal/logging"
	"github.com/annel0/opencraft/internal/vec"
	"github.com/annel0/opencraft/internal/world"
	"github.com/annel0/opencraft/internal/world/block"
)

// DefaultInterval - минимальный интервал между изменениями, в единицах времени симуляции
const DefaultInterval = 5.0

// Selector выбирает чанки для изменения
type Selector func(chunk *world.Chunk) bool

// AtLocation выбирает чанк с заданными координатами сетки
func AtLocation(location vec.Vec3) Selector {
	return func(chunk *world.Chunk) bool {
		return chunk.Location == location
	}
}

// AllChunks выбирает все загруженные чанки
func AllChunks(*world.Chunk) bool { return true }

// Config - параметры ModificationSystem
type Config struct {
	Interval    float64         // Минимальный интервал между запусками
	UpdateAll   bool            // Менять весь чанк или только первую клетку
	ToggleBlock block.BlockType // Твёрдый блок, чередующийся с воздухом
	Selector    Selector        // По умолчанию чанк в начале координат
	Source      string          // Источник в событиях шины
}

// DefaultConfig возвращает параметры по умолчанию
func DefaultConfig() Config {
	return Config{
		Interval:    DefaultInterval,
		UpdateAll:   true,
		ToggleBlock: block.Stone,
		Selector:    AtLocation(vec.Zero3),
		Source:      "terrain",
	}
}

// Report - итог одного срабатывания
type Report struct {
	Elapsed float64              `json:"elapsed"`
	Chunks  int                  `json:"chunks"`
	Cells   int                  `json:"cells"`
	Tickets []world.RemeshTicket `json:"-"`
}

// ModificationSystem меняет блоки выбранных чанков не чаще раза в Interval
// и выставляет им флаг перестроения. Сам флаг система никогда не снимает:
// это делает потребитель через AckRemesh.
//
// Работает только на авторитетной стороне.
type ModificationSystem struct {
	store *world.ChunkStore
	bus   eventbus.EventBus
	cfg   Config
	log   *logging.Logger

	lastUpdate float64
	updateAll  bool
}

// NewModificationSystem создаёт систему. bus может быть nil.
func NewModificationSystem(store *world.ChunkStore, bus eventbus.EventBus, cfg Config) *ModificationSystem {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if !cfg.ToggleBlock.Valid() || cfg.ToggleBlock.IsAir() {
		cfg.ToggleBlock = def.ToggleBlock
	}
	if cfg.Selector == nil {
		cfg.Selector = def.Selector
	}
	if cfg.Source == "" {
		cfg.Source = def.Source
	}

	return &ModificationSystem{
		store: store,
		bus:   bus,
		cfg:   cfg,
		log:   logging.Default(),
		// Первый вызов Update срабатывает сразу
		lastUpdate: -cfg.Interval,
		updateAll:  cfg.UpdateAll,
	}
}

// SetLogger заменяет логгер системы
func (m *ModificationSystem) SetLogger(l *logging.Logger) {
	m.log = l
}

// SetUpdateAll переключает режим изменения
func (m *ModificationSystem) SetUpdateAll(all bool) {
	m.updateAll = all
}

// UpdateAll сообщает текущий режим
func (m *ModificationSystem) UpdateAll() bool {
	return m.updateAll
}

// LastUpdate возвращает время последнего срабатывания
func (m *ModificationSystem) LastUpdate() float64 {
	return m.lastUpdate
}

// Interval возвращает минимальный интервал между срабатываниями
func (m *ModificationSystem) Interval() float64 {
	return m.cfg.Interval
}

// Toggle возвращает новое значение клетки: твёрдый блок становится воздухом, остальное - твёрдым блоком
func (m *ModificationSystem) Toggle(t block.BlockType) block.BlockType {
	if t == m.cfg.ToggleBlock {
		return block.Air
	}
	return m.cfg.ToggleBlock
}

// Update выполняет изменение, если с прошлого срабатывания прошло не меньше Interval.
// Возвращает false, если вызов пропущен по интервалу.
func (m *ModificationSystem) Update(ctx context.Context, elapsed float64) (Report, bool) {
	if elapsed-m.lastUpdate < m.cfg.Interval {
		return Report{}, false
	}
	m.lastUpdate = elapsed

	report := Report{Elapsed: elapsed}
	m.store.ForEach(func(ref world.ChunkRef, chunk *world.Chunk) bool {
		if !m.cfg.Selector(chunk) {
			return true
		}

		blocks, ok := m.store.MutableBlocks(ref)
		if !ok {
			return true
		}

		changed := 1
		if m.updateAll {
			for i := range blocks {
				blocks[i] = m.Toggle(blocks[i])
			}
			changed = len(blocks)
		} else {
			blocks[0] = m.Toggle(blocks[0])
		}

		epoch, ok := m.store.MarkRemesh(ref)
		if !ok {
			return true
		}

		report.Chunks++
		report.Cells += changed
		report.Tickets = append(report.Tickets, world.RemeshTicket{Ref: ref, Location: chunk.Location, Epoch: epoch})
		m.publish(ctx, eventbus.TerrainModifiedEvent{
			Location: chunk.Location,
			Epoch:    epoch,
			Changed:  changed,
			Full:     m.updateAll,
			Elapsed:  elapsed,
		})
		return true
	})

	m.log.Debug("Изменено чанков: %d, клеток: %d (t=%.2f)", report.Chunks, report.Cells, elapsed)
	return report, true
}

// publish отправляет TerrainModified. Ошибка шины не отменяет изменение.
func (m *ModificationSystem) publish(ctx context.Context, payload eventbus.TerrainModifiedEvent) {
	if m.bus == nil {
		return
	}
	ev, err := eventbus.NewJSONEnvelope(eventbus.TerrainModified, m.cfg.Source, payload)
	if err == nil {
		err = m.bus.Publish(ctx, ev)
	}
	if err != nil {
		m.log.Warn("Не удалось опубликовать изменение чанка %v: %v", payload.Location, err)
	}
}
