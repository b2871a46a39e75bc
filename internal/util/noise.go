package util

import (
	"github.com/aquilax/go-perlin"
)

// Noise - детерминированный генератор шума Перлина для одного сида
type Noise struct {
	perlin *perlin.Perlin
	seed   int64
}

// NewNoise инициализирует генератор шума Перлина с указанным сидом
func NewNoise(seed int64) *Noise {
	alpha := 2.0  // Сглаживание шума
	beta := 2.0   // Частота шума
	n := int32(3) // Количество октав
	return &Noise{
		perlin: perlin.NewPerlin(alpha, beta, n, seed),
		seed:   seed,
	}
}

// Seed возвращает сид генератора
func (n *Noise) Seed() int64 {
	return n.seed
}

// Noise2D возвращает значение шума для указанных координат (от 0 до 1)
func (n *Noise) Noise2D(x, y float64) float64 {
	// Значение шума лежит примерно в диапазоне от -1 до 1
	return clamp01((n.perlin.Noise2D(x, y) + 1.0) / 2.0)
}

// Noise3D возвращает значение объёмного шума (от 0 до 1)
func (n *Noise) Noise3D(x, y, z float64) float64 {
	return clamp01((n.perlin.Noise3D(x, y, z) + 1.0) / 2.0)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
