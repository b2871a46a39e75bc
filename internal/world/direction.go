package world

import "github.com/annel0/opencraft/internal/vec"

// Direction - одно из шести направлений к соседнему чанку
type Direction uint8

const (
	East  Direction = iota // +X
	West                   // -X
	Up                     // +Y
	Down                   // -Y
	North                  // +Z
	South                  // -Z

	DirectionCount // всегда последний
)

var directionOffsets = [DirectionCount]vec.Vec3{
	East:  {X: 1},
	West:  {X: -1},
	Up:    {Y: 1},
	Down:  {Y: -1},
	North: {Z: 1},
	South: {Z: -1},
}

var directionNames = [DirectionCount]string{"east", "west", "up", "down", "north", "south"}

// Offset возвращает единичный сдвиг в сетке чанков
func (d Direction) Offset() vec.Vec3 {
	return directionOffsets[d]
}

// Opposite возвращает противоположное направление
func (d Direction) Opposite() Direction {
	return d ^ 1
}

func (d Direction) String() string {
	if d >= DirectionCount {
		return "invalid"
	}
	return directionNames[d]
}

// overflowDirection возвращает направление, в котором локальный адрес
// выходит за пределы чанка. Оси проверяются в порядке X, Y, Z.
func overflowDirection(local vec.Vec3) (Direction, bool) {
	switch {
	case local.X < 0:
		return West, true
	case local.X >= ChunkSize:
		return East, true
	case local.Y < 0:
		return Down, true
	case local.Y >= ChunkSize:
		return Up, true
	case local.Z < 0:
		return South, true
	case local.Z >= ChunkSize:
		return North, true
	}
	return 0, false
}
