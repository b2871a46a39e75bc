// Package sim выполняет тик симуляции мира в фиксированном порядке фаз.
package sim

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/annel0/opencraft/internal/logging"
	"github.com/annel0/opencraft/internal/metrics"
	"github.com/annel0/opencraft/internal/observability"
	"github.com/annel0/opencraft/internal/player"
	"github.com/annel0/opencraft/internal/terrain"
	"github.com/annel0/opencraft/internal/world"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Имена фаз тика в порядке выполнения
const (
	PhaseReplication  = "replication"
	PhaseGeneration   = "generation"
	PhaseInput        = "input"
	PhaseSelection    = "selection"
	PhaseModification = "modification"
	PhaseRemesh       = "remesh"
)

// DefaultTickRate - тиков в секунду по умолчанию
const DefaultTickRate = 20

// ErrModifierOnClient возвращается при попытке запустить изменения на реплике
var ErrModifierOnClient = errors.New("sim: изменения мира выполняются только на сервере")

// Replicator переносит в хранилище изменения, накопленные вне цикла
type Replicator interface {
	Drain() (int, error)
}

// Config - параметры цикла
type Config struct {
	Role           Role
	TickRate       int
	Radius         int // Радиус генерации вокруг наблюдателей, в чанках
	VerticalRadius int
}

// TickReport - итог одного тика
type TickReport struct {
	Tick         uint64           `json:"tick"`
	Elapsed      float64          `json:"elapsed"`
	Replicated   int              `json:"replicated"`
	Generated    int              `json:"generated"`
	Assigned     int              `json:"assigned"`
	Detached     int              `json:"detached"`
	Selection    player.ScanStats `json:"selection"`
	Modified     bool             `json:"modified"`
	Modification terrain.Report   `json:"modification"`
	Remeshed     int              `json:"remeshed"`
	RemeshFailed int              `json:"remesh_failed"`
	Phases       []string         `json:"phases"`
	Duration     time.Duration    `json:"duration"`
}

// Loop выполняет тики. Фазы одного тика строго упорядочены:
// репликация, генерация, привязка наблюдателей, выделение, изменения (только сервер), перестроение.
// После фазы генерации топология чанков в пределах тика не меняется.
// Все записи в хранилище выполняются из горутины Step.
type Loop struct {
	cfg        Config
	dt         float64
	store      *world.ChunkStore
	players    *player.Registry
	scanner    *player.SelectionScanner
	generator  *world.WorldGenerator
	modifier   *terrain.ModificationSystem
	replicator Replicator
	consumers  []world.RemeshConsumer
	metrics    *metrics.SimMetrics
	tracer     trace.Tracer
	log        *logging.Logger

	mu   sync.Mutex // Сериализует Step
	tick uint64

	lastMu sync.RWMutex
	last   TickReport
}

// Option настраивает Loop
type Option func(*Loop)

// WithGenerator включает фазу генерации
func WithGenerator(g *world.WorldGenerator) Option {
	return func(l *Loop) { l.generator = g }
}

// WithModifier включает фазу изменений
func WithModifier(m *terrain.ModificationSystem) Option {
	return func(l *Loop) { l.modifier = m }
}

// WithReplicator включает фазу репликации в начале тика
func WithReplicator(r Replicator) Option {
	return func(l *Loop) { l.replicator = r }
}

// WithRemeshConsumer добавляет потребителя перестроения
func WithRemeshConsumer(c world.RemeshConsumer) Option {
	return func(l *Loop) { l.consumers = append(l.consumers, c) }
}

// WithMetrics включает метрики
func WithMetrics(m *metrics.SimMetrics) Option {
	return func(l *Loop) { l.metrics = m }
}

// WithLogger заменяет логгер
func WithLogger(log *logging.Logger) Option {
	return func(l *Loop) { l.log = log }
}

// NewLoop создаёт цикл симуляции
func NewLoop(cfg Config, store *world.ChunkStore, players *player.Registry, scanner *player.SelectionScanner, opts ...Option) (*Loop, error) {
	if cfg.TickRate <= 0 {
		cfg.TickRate = DefaultTickRate
	}
	l := &Loop{
		cfg:     cfg,
		dt:      1.0 / float64(cfg.TickRate),
		store:   store,
		players: players,
		scanner: scanner,
		tracer:  observability.Tracer("sim"),
		log:     logging.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if cfg.Role == RoleClient && l.modifier != nil {
		return nil, ErrModifierOnClient
	}
	return l, nil
}

// Role возвращает роль цикла
func (l *Loop) Role() Role {
	return l.cfg.Role
}

// TickInterval возвращает длительность тика
func (l *Loop) TickInterval() time.Duration {
	return time.Second / time.Duration(l.cfg.TickRate)
}

// LastReport возвращает итог последнего тика
func (l *Loop) LastReport() TickReport {
	l.lastMu.RLock()
	defer l.lastMu.RUnlock()
	return l.last
}

// Step выполняет один тик. Время симуляции тика n равно n*dt, первый тик начинается с нуля.
// Тик всегда проходит все фазы; ошибки фаз возвращаются вместе с итогом.
func (l *Loop) Step(ctx context.Context) (TickReport, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	start := time.Now()
	report := TickReport{Tick: l.tick, Elapsed: float64(l.tick) * l.dt}
	l.tick++

	ctx, span := l.tracer.Start(ctx, "sim.tick", trace.WithAttributes(
		attribute.Int64("tick", int64(report.Tick)),
		attribute.String("role", l.cfg.Role.String()),
	))
	defer span.End()

	var errs []error
	if l.replicator != nil {
		errs = append(errs, l.phase(ctx, &report, PhaseReplication, func(ctx context.Context) error {
			n, err := l.replicator.Drain()
			report.Replicated = n
			return err
		}))
	}

	if l.generator != nil {
		l.phase(ctx, &report, PhaseGeneration, func(ctx context.Context) error {
			for _, loc := range l.players.ChunkLocations() {
				report.Generated += len(l.generator.GenerateAround(l.store, loc, l.cfg.Radius, l.cfg.VerticalRadius))
			}
			return nil
		})
	}

	l.phase(ctx, &report, PhaseInput, func(ctx context.Context) error {
		report.Assigned, report.Detached = l.players.UpdateContainingAreas(l.store)
		return nil
	})

	l.phase(ctx, &report, PhaseSelection, func(ctx context.Context) error {
		report.Selection = l.players.Scan(l.scanner)
		return nil
	})

	if l.cfg.Role == RoleServer && l.modifier != nil {
		l.phase(ctx, &report, PhaseModification, func(ctx context.Context) error {
			report.Modification, report.Modified = l.modifier.Update(ctx, report.Elapsed)
			return nil
		})
	}

	l.phase(ctx, &report, PhaseRemesh, func(ctx context.Context) error {
		l.remesh(ctx, &report)
		return nil
	})

	report.Duration = time.Since(start)
	if l.metrics != nil {
		l.metrics.ObserveTick(report.Duration)
		l.metrics.RecordSelection(report.Selection.Scanned, report.Selection.Skipped, report.Selection.Hits)
		if report.Modified {
			l.metrics.RecordModification(report.Modification.Chunks, report.Modification.Cells)
		}
		l.metrics.SetWorld(l.store.Len(), l.players.Len())
	}

	l.lastMu.Lock()
	l.last = report
	l.lastMu.Unlock()

	// Ошибка фазы не прерывает тик: остальные фазы уже выполнены
	err := errors.Join(errs...)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return report, err
}

// phase выполняет фазу в отдельном спане
func (l *Loop) phase(ctx context.Context, report *TickReport, name string, fn func(ctx context.Context) error) error {
	ctx, span := l.tracer.Start(ctx, "sim."+name)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	if l.metrics != nil {
		l.metrics.ObservePhase(name, time.Since(start))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	report.Phases = append(report.Phases, name)
	return err
}

// remesh передаёт ожидающие чанки потребителям
func (l *Loop) remesh(ctx context.Context, report *TickReport) {
	tickets := l.store.PendingRemesh()
	if len(l.consumers) == 0 || len(tickets) == 0 {
		if l.metrics != nil {
			l.metrics.RecordRemesh(0, 0, len(tickets))
		}
		return
	}

	for _, ticket := range tickets {
		chunk, ok := l.store.Chunk(ticket.Ref)
		if !ok {
			continue
		}
		failed := false
		for _, consumer := range l.consumers {
			if err := consumer.Remesh(ctx, chunk, ticket); err != nil {
				l.log.Warn("Перестроение чанка %v (эпоха %d) не удалось: %v", ticket.Location, ticket.Epoch, err)
				failed = true
			}
		}
		if failed {
			report.RemeshFailed++
		} else {
			report.Remeshed++
		}
	}

	if l.metrics != nil {
		l.metrics.RecordRemesh(report.Remeshed, report.RemeshFailed, len(l.store.PendingRemesh()))
	}
}

// Run выполняет тики по таймеру до отмены ctx
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.TickInterval())
	defer ticker.Stop()

	l.log.Info("🔄 Цикл симуляции запущен: роль=%s, %d тиков/с", l.cfg.Role, l.cfg.TickRate)
	for {
		select {
		case <-ctx.Done():
			l.log.Info("Цикл симуляции остановлен")
			return nil
		case <-ticker.C:
			report, err := l.Step(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				l.log.Error("Ошибка тика %d: %v", report.Tick, err)
				continue
			}
			if report.Duration > l.TickInterval() {
				l.log.Warn("Тик %d занял %v (бюджет %v)", report.Tick, report.Duration, l.TickInterval())
			}
		}
	}
}
