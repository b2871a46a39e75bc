package block

// Статические таблицы свойств блоков. Индексируются значением BlockType.

// blockToTexture отображает тип блока на индекс в массиве текстур.
// Индекс упакован в старшие биты: (i & 31) << 24.
var blockToTexture = [Count]int{
	0,
	(1 & 31) << 24,
	(2 & 31) << 24,
	(3 & 31) << 24,
	(4 & 31) << 24,
	(5 & 31) << 24,
	(6 & 31) << 24,
	(7 & 31) << 24,
	(8 & 31) << 24,
	(9 & 31) << 24,
	(10 & 31) << 24,
	(11 & 31) << 24,
	(12 & 31) << 24,
	(13 & 31) << 24,
}

// blockUVSizing > 1 растягивает текстуру на несколько блоков
var blockUVSizing = [Count]float32{
	1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0, 1.0,
}

// powerableBlock отмечает блоки, которые могут быть запитаны.
// Power сам является источником и запитан быть не может.
var powerableBlock = [Count]bool{
	false, false, false, false, false, false, false, false, false, false, true, true, true, true,
}

var depoweredState = [Count]BlockType{
	Air,
	Stone,
	Dirt,
	Tin,
	Gem,
	Grass,
	Leaf,
	Wood,
	Unbreakable,
	Power,
	OffWire,
	OffWire,
	OffLamp,
	OffLamp,
}

var poweredState = [Count]BlockType{
	Air,
	Stone,
	Dirt,
	Tin,
	Gem,
	Grass,
	Leaf,
	Wood,
	Unbreakable,
	Power,
	OnWire,
	OnWire,
	OnLamp,
	OnLamp,
}

// Texture возвращает индекс текстуры блока
func Texture(t BlockType) int {
	if !t.Valid() {
		return 0
	}
	return blockToTexture[t]
}

// UVSizing возвращает коэффициент тайлинга UV
func UVSizing(t BlockType) float32 {
	if !t.Valid() {
		return 1.0
	}
	return blockUVSizing[t]
}

// IsPowerable сообщает, может ли блок находиться в запитанном состоянии
func IsPowerable(t BlockType) bool {
	return t.Valid() && powerableBlock[t]
}

// Powered возвращает запитанный вариант блока. Для незапитываемых блоков - сам блок.
func Powered(t BlockType) BlockType {
	if !t.Valid() {
		return t
	}
	return poweredState[t]
}

// Depowered возвращает обесточенный вариант блока. Для незапитываемых блоков - сам блок.
func Depowered(t BlockType) BlockType {
	if !t.Valid() {
		return t
	}
	return depoweredState[t]
}
