package block

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownBlockType возвращается при разборе неизвестного имени блока
var ErrUnknownBlockType = errors.New("неизвестный тип блока")

// BlockType представляет тип вокселя. Набор закрыт и упорядочен:
// значения используются как индексы статических таблиц.
type BlockType uint8

// Константы типов блоков
const (
	Air BlockType = iota // 0 - пустота
	Stone
	Dirt
	Tin
	Gem
	Grass
	Leaf
	Wood
	Unbreakable
	Power // источник питания
	OffWire
	OnWire
	OffLamp
	OnLamp

	Count // всегда последний: количество типов
)

var names = [Count]string{
	"Air",
	"Stone",
	"Dirt",
	"Tin",
	"Gem",
	"Grass",
	"Leaf",
	"Wood",
	"Unbreakable",
	"Power",
	"OffWire",
	"OnWire",
	"OffLamp",
	"OnLamp",
}

// registry отображает имя в нижнем регистре на тип блока
var registry = func() map[string]BlockType {
	m := make(map[string]BlockType, Count)
	for i, name := range names {
		m[strings.ToLower(name)] = BlockType(i)
	}
	return m
}()

// Valid проверяет, входит ли значение в перечисление
func (t BlockType) Valid() bool {
	return t < Count
}

// IsAir возвращает true для пустого блока
func (t BlockType) IsAir() bool {
	return t == Air
}

// String возвращает имя типа блока
func (t BlockType) String() string {
	if !t.Valid() {
		return fmt.Sprintf("BlockType(%d)", uint8(t))
	}
	return names[t]
}

// ParseBlockType возвращает тип блока по имени (без учёта регистра)
func ParseBlockType(name string) (BlockType, error) {
	t, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Air, fmt.Errorf("%w: %q", ErrUnknownBlockType, name)
	}
	return t, nil
}

// All возвращает все типы блоков в порядке перечисления
func All() []BlockType {
	all := make([]BlockType, 0, Count)
	for t := Air; t < Count; t++ {
		all = append(all, t)
	}
	return all
}

// MarshalText кодирует тип блока его именем (YAML/JSON)
func (t BlockType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText разбирает тип блока из имени
func (t *BlockType) UnmarshalText(text []byte) error {
	parsed, err := ParseBlockType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
