package world

import (
	"math/rand"

	"github.com/annel0/opencraft/internal/util"
	"github.com/annel0/opencraft/internal/vec"
	"github.com/annel0/opencraft/internal/world/block"
)

// BiomeType представляет тип биома
type BiomeType int

const (
	BiomePlains BiomeType = iota
	BiomeForest
	BiomeMountains
)

// Константы генерации
const (
	BedrockY      = -ChunkSize // Ниже этого уровня мир не генерируется
	MountainStart = 0.70       // Выше - горы с рудами
)

// WorldGenerator генерирует ландшафт мира по карте высот
type WorldGenerator struct {
	Seed          int64   // Сид для генерации шума
	NoiseScale    float64 // Масштаб основного шума (высота)
	BiomeScale    float64 // Масштаб шума биомов
	BaseHeight    int     // Средняя высота поверхности
	Amplitude     float64 // Разброс высоты поверхности
	ForestDensity float64 // Плотность лесов (от 0 до 1)

	height *util.Noise
	biome  *util.Noise
}

// NewWorldGenerator создаёт новый генератор мира
func NewWorldGenerator(seed int64) *WorldGenerator {
	return &WorldGenerator{
		Seed:          seed,
		NoiseScale:    0.05, // Настройка сглаженности ландшафта
		BiomeScale:    0.02, // Настройка размера биомов
		BaseHeight:    4,
		Amplitude:     10,
		ForestDensity: 0.02,
		height:        util.NewNoise(seed),
		biome:         util.NewNoise(seed + 42),
	}
}

// SurfaceHeight возвращает мировую Y-координату первого пустого блока над поверхностью
func (wg *WorldGenerator) SurfaceHeight(worldX, worldZ int) (int, BiomeType) {
	h := wg.height.Noise2D(float64(worldX)*wg.NoiseScale, float64(worldZ)*wg.NoiseScale)
	b := wg.biome.Noise2D(float64(worldX)*wg.BiomeScale, float64(worldZ)*wg.BiomeScale)

	surface := wg.BaseHeight + int(h*wg.Amplitude)
	return surface, wg.getBiomeType(h, b)
}

// GenerateChunk генерирует чанк по его координатам
func (wg *WorldGenerator) GenerateChunk(location vec.Vec3) *Chunk {
	chunk := NewChunk(location)

	// Для каждого чанка свой сид на основе глобального сида и координат
	chunkSeed := wg.Seed + int64(location.X*31) + int64(location.Y*17) + int64(location.Z*13)
	rng := rand.New(rand.NewSource(chunkSeed))

	origin := chunk.Origin()
	for z := 0; z < ChunkSize; z++ {
		for x := 0; x < ChunkSize; x++ {
			surface, biome := wg.SurfaceHeight(origin.X+x, origin.Z+z)

			for y := 0; y < ChunkSize; y++ {
				worldY := origin.Y + y
				t := wg.getBlockForHeight(worldY, surface, biome, rng)
				if t != block.Air {
					chunk.Blocks[BlockIndex(vec.Vec3{X: x, Y: y, Z: z})] = t
				}
			}

			// Деревья: ствол из Wood с шапкой из Leaf в пределах чанка
			if biome == BiomeForest && rng.Float64() < wg.ForestDensity {
				wg.placeTree(chunk, x, surface-origin.Y, z, rng)
			}
		}
	}

	return chunk
}

// getBlockForHeight возвращает тип блока для мировой высоты в колонне
func (wg *WorldGenerator) getBlockForHeight(worldY, surface int, biome BiomeType, rng *rand.Rand) block.BlockType {
	switch {
	case worldY < BedrockY:
		return block.Air
	case worldY == BedrockY:
		return block.Unbreakable
	case worldY >= surface:
		return block.Air
	case worldY == surface-1:
		if biome == BiomeMountains {
			return block.Stone
		}
		return block.Grass
	case worldY >= surface-4:
		if biome == BiomeMountains {
			return block.Stone
		}
		return block.Dirt
	}

	// Глубина: камень с вкраплениями руды
	r := rng.Float64()
	switch {
	case r < 0.01:
		return block.Gem
	case r < 0.05:
		return block.Tin
	}
	return block.Stone
}

// placeTree ставит дерево, если оно помещается в чанк по высоте
func (wg *WorldGenerator) placeTree(chunk *Chunk, x, baseY, z int, rng *rand.Rand) {
	treeHeight := 3 + rng.Intn(3) // Высота дерева 3-5 блоков
	if baseY < 0 || baseY+treeHeight >= ChunkSize {
		return
	}
	for y := baseY; y < baseY+treeHeight; y++ {
		chunk.SetBlock(vec.Vec3{X: x, Y: y, Z: z}, block.Wood)
	}
	chunk.SetBlock(vec.Vec3{X: x, Y: baseY + treeHeight, Z: z}, block.Leaf)
}

// getBiomeType определяет тип биома на основе значений шума
func (wg *WorldGenerator) getBiomeType(height, biomeValue float64) BiomeType {
	if height > MountainStart {
		return BiomeMountains
	}
	if biomeValue > 0.6 {
		return BiomeForest
	}
	return BiomePlains
}

// GenerateAround загружает недостающие чанки в кубе радиуса radius вокруг center
// и разрешает их соседство. Возвращает ссылки на новые чанки.
func (wg *WorldGenerator) GenerateAround(store *ChunkStore, center vec.Vec3, radius, verticalRadius int) []ChunkRef {
	var added []ChunkRef
	for dx := -radius; dx <= radius; dx++ {
		for dy := -verticalRadius; dy <= verticalRadius; dy++ {
			for dz := -radius; dz <= radius; dz++ {
				location := center.Add(vec.Vec3{X: dx, Y: dy, Z: dz})
				if _, exists := store.Lookup(location); exists {
					continue
				}
				ref := store.Add(wg.GenerateChunk(location))
				store.LinkNeighbors(ref)
				added = append(added, ref)
			}
		}
	}
	return added
}
