package world

import (
	"context"

	"github.com/annel0/opencraft/internal/vec"
)

// RemeshTicket описывает ожидающую перестройки инвалидацию чанка
type RemeshTicket struct {
	Ref      ChunkRef
	Location vec.Vec3
	Epoch    uint64 // Эпоха инвалидации, которую нужно подтвердить
}

// RemeshConsumer перестраивает производное представление чанка
// (меш, реплику) и после этого подтверждает эпоху через AckRemesh.
type RemeshConsumer interface {
	Remesh(ctx context.Context, chunk *Chunk, ticket RemeshTicket) error
}

// MarkRemesh поднимает флаг "нужна перестройка" и возвращает новую эпоху
func (c *Chunk) MarkRemesh() uint64 {
	return c.remeshEpoch.Add(1)
}

// NeedsRemesh возвращает true, пока последняя эпоха не подтверждена
func (c *Chunk) NeedsRemesh() bool {
	return c.remeshEpoch.Load() > c.meshedEpoch.Load()
}

// RemeshEpoch возвращает последнюю выданную эпоху
func (c *Chunk) RemeshEpoch() uint64 {
	return c.remeshEpoch.Load()
}

// AckRemesh подтверждает перестройку до эпохи epoch включительно.
// Подтверждение старой эпохи не снимает более новую инвалидацию.
func (c *Chunk) AckRemesh(epoch uint64) bool {
	if epoch > c.remeshEpoch.Load() {
		epoch = c.remeshEpoch.Load()
	}
	for {
		meshed := c.meshedEpoch.Load()
		if epoch <= meshed {
			return false
		}
		if c.meshedEpoch.CompareAndSwap(meshed, epoch) {
			return true
		}
	}
}

// MarkRemesh поднимает флаг перестройки у чанка по ссылке
func (s *ChunkStore) MarkRemesh(ref ChunkRef) (uint64, bool) {
	chunk, ok := s.Chunk(ref)
	if !ok {
		return 0, false
	}
	return chunk.MarkRemesh(), true
}

// NeedsRemesh проверяет флаг перестройки у чанка по ссылке
func (s *ChunkStore) NeedsRemesh(ref ChunkRef) bool {
	chunk, ok := s.Chunk(ref)
	return ok && chunk.NeedsRemesh()
}

// AckRemesh подтверждает перестройку чанка по ссылке
func (s *ChunkStore) AckRemesh(ref ChunkRef, epoch uint64) bool {
	chunk, ok := s.Chunk(ref)
	if !ok {
		return false
	}
	return chunk.AckRemesh(epoch)
}

// PendingRemesh возвращает все чанки с поднятым флагом в порядке координат
func (s *ChunkStore) PendingRemesh() []RemeshTicket {
	var tickets []RemeshTicket
	s.ForEach(func(ref ChunkRef, chunk *Chunk) bool {
		if chunk.NeedsRemesh() {
			tickets = append(tickets, RemeshTicket{
				Ref:      ref,
				Location: chunk.Location,
				Epoch:    chunk.RemeshEpoch(),
			})
		}
		return true
	})
	return tickets
}

// RemeshFunc позволяет использовать функцию как RemeshConsumer
type RemeshFunc func(ctx context.Context, chunk *Chunk, ticket RemeshTicket) error

// Remesh вызывает f
func (f RemeshFunc) Remesh(ctx context.Context, chunk *Chunk, ticket RemeshTicket) error {
	return f(ctx, chunk, ticket)
}
