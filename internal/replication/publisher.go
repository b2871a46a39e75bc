package replication

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/annel0/opencraft/internal/eventbus"
	"github.com/annel0/opencraft/internal/logging"
	"github.com/annel0/opencraft/internal/vec"
	"github.com/annel0/opencraft/internal/world"
)

// Publisher - потребитель перестроения на авторитетной стороне.
// Для каждого тикета кодирует снимок чанка, публикует ChunkRemesh
// и подтверждает эпоху тикета. При ошибке публикации эпоха не подтверждается,
// и чанк будет выдан повторно на следующем тике.
type Publisher struct {
	store  *world.ChunkStore
	bus    eventbus.EventBus
	codec  *Codec
	source string

	mu     sync.RWMutex
	latest map[vec.Vec3]published
}

type published struct {
	epoch uint64
	data  []byte
}

var _ world.RemeshConsumer = (*Publisher)(nil)

// NewPublisher создаёт публикатор. bus может быть nil: тогда снимки только кэшируются.
func NewPublisher(store *world.ChunkStore, bus eventbus.EventBus, codec *Codec, source string) *Publisher {
	if source == "" {
		source = "replication"
	}
	return &Publisher{
		store:  store,
		bus:    bus,
		codec:  codec,
		source: source,
		latest: make(map[vec.Vec3]published),
	}
}

// Remesh публикует снимок чанка и подтверждает эпоху тикета
func (p *Publisher) Remesh(ctx context.Context, chunk *world.Chunk, ticket world.RemeshTicket) error {
	data := p.codec.Encode(SnapshotOf(chunk, ticket.Epoch))

	if p.bus != nil {
		ev := eventbus.NewEnvelope(eventbus.ChunkRemesh, p.source, data)
		ev.Priority = 5
		ev.Metadata = map[string]string{
			"location": chunk.Location.String(),
			"epoch":    strconv.FormatUint(ticket.Epoch, 10),
		}
		if err := p.bus.Publish(ctx, ev); err != nil {
			return fmt.Errorf("публикация чанка %v: %w", chunk.Location, err)
		}
	}

	p.mu.Lock()
	p.latest[chunk.Location] = published{epoch: ticket.Epoch, data: data}
	p.mu.Unlock()

	p.store.AckRemesh(ticket.Ref, ticket.Epoch)
	return nil
}

// Latest возвращает последний опубликованный снимок чанка
func (p *Publisher) Latest(location vec.Vec3) ([]byte, uint64, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	pub, ok := p.latest[location]
	return pub.data, pub.epoch, ok
}

// Forget удаляет кэш выгруженного чанка
func (p *Publisher) Forget(location vec.Vec3) {
	p.mu.Lock()
	delete(p.latest, location)
	p.mu.Unlock()
}

// Replica применяет события ChunkRemesh к локальному хранилищу реплики.
// Реплика ведёт собственные эпохи: применённый снимок поднимает локальный
// флаг перестроения, который снимает локальный мешер.
//
// Снимки из шины только разбираются и ставятся в очередь. Хранилище меняет
// Drain, который вызывается из цикла симуляции в начале тика: так буферы
// и топология не меняются, пока идёт сканирование выделения.
type Replica struct {
	store *world.ChunkStore
	codec *Codec

	mu      sync.Mutex
	applied map[vec.Vec3]uint64 // Последняя применённая авторитетная эпоха
	pending map[vec.Vec3]ChunkSnapshot
}

// NewReplica создаёт реплику поверх хранилища
func NewReplica(store *world.ChunkStore, codec *Codec) *Replica {
	return &Replica{
		store:   store,
		codec:   codec,
		applied: make(map[vec.Vec3]uint64),
		pending: make(map[vec.Vec3]ChunkSnapshot),
	}
}

// Apply разбирает закодированный снимок и ставит его в очередь.
// Устаревшие снимки пропускаются; из нескольких снимков одного чанка
// в очереди остаётся самый новый. Возвращает true, если снимок принят.
// Безопасен для вызова из любой горутины.
func (r *Replica) Apply(data []byte) (bool, error) {
	snapshot, err := r.codec.Decode(data)
	if err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if last, ok := r.applied[snapshot.Location]; ok && snapshot.Epoch <= last {
		return false, nil
	}
	if queued, ok := r.pending[snapshot.Location]; ok && snapshot.Epoch <= queued.Epoch {
		return false, nil
	}
	r.pending[snapshot.Location] = snapshot
	return true, nil
}

// Pending возвращает число снимков в очереди
func (r *Replica) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Drain переносит снимки из очереди в хранилище и возвращает число заменённых чанков.
// Вызывается единственным писателем хранилища между тиками.
func (r *Replica) Drain() (int, error) {
	r.mu.Lock()
	batch := make([]ChunkSnapshot, 0, len(r.pending))
	for loc, snapshot := range r.pending {
		batch = append(batch, snapshot)
		// Эпоха фиксируется при выборке: снимки не новее отбрасываются уже в Apply
		r.applied[loc] = snapshot.Epoch
	}
	r.pending = make(map[vec.Vec3]ChunkSnapshot)
	r.mu.Unlock()

	sort.Slice(batch, func(i, j int) bool {
		a, b := batch[i].Location, batch[j].Location
		if a.X != b.X {
			return a.X < b.X
		}
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.Z < b.Z
	})

	var errs []error
	applied := 0
	for _, snapshot := range batch {
		if err := r.load(snapshot); err != nil {
			errs = append(errs, err)
			continue
		}
		applied++
	}
	return applied, errors.Join(errs...)
}

// load заменяет блоки чанка снимком, загружая чанк при необходимости
func (r *Replica) load(snapshot ChunkSnapshot) error {
	ref, ok := r.store.Lookup(snapshot.Location)
	if !ok {
		ref = r.store.Add(world.NewChunk(snapshot.Location))
		r.store.LinkNeighbors(ref)
	}
	chunk, ok := r.store.Chunk(ref)
	if !ok {
		return fmt.Errorf("чанк реплики %v выгружен", snapshot.Location)
	}
	if err := snapshot.Apply(chunk); err != nil {
		return err
	}

	chunk.MarkRemesh()
	return nil
}

// Attach подписывает реплику на события ChunkRemesh
func (r *Replica) Attach(ctx context.Context, bus eventbus.EventBus) (eventbus.Subscription, error) {
	return bus.Subscribe(ctx, eventbus.Filter{Types: []string{eventbus.ChunkRemesh}}, func(ctx context.Context, ev *eventbus.Envelope) {
		if _, err := r.Apply(ev.Payload); err != nil {
			logging.LogSnapshotError(ev.Source, err, ev.Payload)
		}
	})
}
