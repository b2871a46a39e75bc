// Package metrics публикует показатели симуляции в Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SimMetrics - метрики тика симуляции
type SimMetrics struct {
	ticks          prometheus.Counter
	tickDuration   prometheus.Histogram
	phaseDuration  *prometheus.HistogramVec
	selectionHits  prometheus.Counter
	selectionMiss  prometheus.Counter
	skipped        prometheus.Counter
	modifications  prometheus.Counter
	modifiedCells  prometheus.Counter
	remeshed       prometheus.Counter
	remeshFailures prometheus.Counter
	pendingRemesh  prometheus.Gauge
	loadedChunks   prometheus.Gauge
	observers      prometheus.Gauge
}

// NewSimMetrics создаёт метрики и регистрирует их в reg
func NewSimMetrics(reg prometheus.Registerer) (*SimMetrics, error) {
	const ns = "opencraft"
	m := &SimMetrics{
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "ticks_total",
			Help: "Выполненные тики симуляции.",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns, Name: "tick_duration_seconds",
			Help:    "Длительность тика симуляции.",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
		}),
		phaseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns, Name: "phase_duration_seconds",
			Help:    "Длительность фаз тика.",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		}, []string{"phase"}),
		selectionHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "selection_hits_total",
			Help: "Сканирования, нашедшие твёрдый блок.",
		}),
		selectionMiss: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "selection_misses_total",
			Help: "Сканирования, исчерпавшие луч.",
		}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "selection_skipped_total",
			Help: "Наблюдатели без загруженного чанка, пропущенные сканером.",
		}),
		modifications: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "terrain_modified_chunks_total",
			Help: "Чанки, изменённые авторитетной стороной.",
		}),
		modifiedCells: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "terrain_modified_cells_total",
			Help: "Изменённые клетки чанков.",
		}),
		remeshed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "remesh_completed_total",
			Help: "Перестроения, подтверждённые потребителем.",
		}),
		remeshFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "remesh_failures_total",
			Help: "Ошибки потребителей перестроения.",
		}),
		pendingRemesh: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Name: "remesh_pending",
			Help: "Чанки с поднятым флагом перестроения.",
		}),
		loadedChunks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Name: "chunks_loaded",
			Help: "Загруженные чанки.",
		}),
		observers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Name: "observers",
			Help: "Подключённые наблюдатели.",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.ticks, m.tickDuration, m.phaseDuration,
		m.selectionHits, m.selectionMiss, m.skipped,
		m.modifications, m.modifiedCells,
		m.remeshed, m.remeshFailures, m.pendingRemesh,
		m.loadedChunks, m.observers,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveTick учитывает завершённый тик
func (m *SimMetrics) ObserveTick(d time.Duration) {
	m.ticks.Inc()
	m.tickDuration.Observe(d.Seconds())
}

// ObservePhase учитывает длительность фазы
func (m *SimMetrics) ObservePhase(phase string, d time.Duration) {
	m.phaseDuration.WithLabelValues(phase).Observe(d.Seconds())
}

// RecordSelection учитывает итог прохода выделения
func (m *SimMetrics) RecordSelection(scanned, skipped, hits int) {
	m.selectionHits.Add(float64(hits))
	m.selectionMiss.Add(float64(scanned - hits))
	m.skipped.Add(float64(skipped))
}

// RecordModification учитывает срабатывание системы изменений
func (m *SimMetrics) RecordModification(chunks, cells int) {
	m.modifications.Add(float64(chunks))
	m.modifiedCells.Add(float64(cells))
}

// RecordRemesh учитывает работу потребителей перестроения
func (m *SimMetrics) RecordRemesh(completed, failed, pending int) {
	m.remeshed.Add(float64(completed))
	m.remeshFailures.Add(float64(failed))
	m.pendingRemesh.Set(float64(pending))
}

// SetWorld обновляет размер мира
func (m *SimMetrics) SetWorld(chunks, observers int) {
	m.loadedChunks.Set(float64(chunks))
	m.observers.Set(float64(observers))
}
