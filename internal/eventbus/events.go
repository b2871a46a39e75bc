package eventbus

import "github.com/annel0/opencraft/internal/vec"

// Типы событий ядра мира
const (
	// TerrainModified публикуется авторитетной стороной после изменения блоков чанка
	TerrainModified = "TerrainModified"
	// ChunkRemesh публикуется потребителем перестроения со снимком чанка
	ChunkRemesh = "ChunkRemesh"
)

// TerrainModifiedEvent - полезная нагрузка TerrainModified
type TerrainModifiedEvent struct {
	Location vec.Vec3 `json:"location"`
	Epoch    uint64   `json:"epoch"`    // Эпоха инвалидации после изменения
	Changed  int      `json:"changed"`  // Число изменённых клеток
	Full     bool     `json:"full"`     // Изменялся весь чанк или только первая клетка
	Elapsed  float64  `json:"elapsed"`  // Время симуляции в момент изменения
}

// ChunkRemeshEvent - заголовок события ChunkRemesh; сжатый снимок лежит в Payload
type ChunkRemeshEvent struct {
	Location vec.Vec3 `json:"location"`
	Epoch    uint64   `json:"epoch"`
}
