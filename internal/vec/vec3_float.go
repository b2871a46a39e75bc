package vec

import "math"

// Vec3Float представляет трехмерный вектор с плавающими координатами
type Vec3Float struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

// Add складывает два вектора
func (v Vec3Float) Add(other Vec3Float) Vec3Float {
	return Vec3Float{X: v.X + other.X, Y: v.Y + other.Y, Z: v.Z + other.Z}
}

// Sub вычитает вектор
func (v Vec3Float) Sub(other Vec3Float) Vec3Float {
	return Vec3Float{X: v.X - other.X, Y: v.Y - other.Y, Z: v.Z - other.Z}
}

// Mul умножает вектор на скаляр
func (v Vec3Float) Mul(scalar float64) Vec3Float {
	return Vec3Float{X: v.X * scalar, Y: v.Y * scalar, Z: v.Z * scalar}
}

// Length возвращает длину вектора
func (v Vec3Float) Length() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// MaxVoxelCoord - наибольшая по модулю дискретная координата (диапазон int32)
const MaxVoxelCoord = math.MaxInt32

// FloorChecked работает как Floor, но отказывает для NaN, бесконечностей
// и координат за пределами ±MaxVoxelCoord
func (v Vec3Float) FloorChecked() (Vec3, bool) {
	for _, c := range [3]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) {
			return Vec3{}, false
		}
		if f := math.Floor(c); f > MaxVoxelCoord || f < -MaxVoxelCoord {
			return Vec3{}, false
		}
	}
	return v.Floor(), true
}

// Floor переводит непрерывные координаты в дискретные координаты вокселя.
// Любая точка внутри единичного куба вокселя попадает в этот воксель
// независимо от знака: -0.5 -> -1, 0.5 -> 0.
func (v Vec3Float) Floor() Vec3 {
	return Vec3{
		X: int(math.Floor(v.X)),
		Y: int(math.Floor(v.Y)),
		Z: int(math.Floor(v.Z)),
	}
}
