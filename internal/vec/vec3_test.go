package vec

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVec3FloatFloor(t *testing.T) {
	cases := []struct {
		in   Vec3Float
		want Vec3
	}{
		{Vec3Float{X: 0.5, Y: 1.99, Z: 2}, Vec3{X: 0, Y: 1, Z: 2}},
		{Vec3Float{X: -0.5, Y: -1, Z: -1.01}, Vec3{X: -1, Y: -1, Z: -2}},
		{Vec3Float{X: -0.0001, Y: 15.9999, Z: 16}, Vec3{X: -1, Y: 15, Z: 16}},
	}

	for _, c := range cases {
		assert.Equal(t, c.want, c.in.Floor(), "Неверное округление для %+v", c.in)
	}
}

func TestVec3FloatFloorChecked(t *testing.T) {
	got, ok := Vec3Float{X: -0.5, Y: 1.5, Z: 16}.FloorChecked()
	assert.True(t, ok)
	assert.Equal(t, Vec3{X: -1, Y: 1, Z: 16}, got)

	_, ok = Vec3Float{X: -MaxVoxelCoord, Y: MaxVoxelCoord + 0.5}.FloorChecked()
	assert.True(t, ok, "Границы диапазона допустимы")

	bad := []Vec3Float{
		{X: math.NaN()},
		{Y: math.Inf(1)},
		{Z: math.Inf(-1)},
		{X: 1e19},
		{Y: -MaxVoxelCoord - 1},
	}
	for _, v := range bad {
		_, ok := v.FloorChecked()
		assert.False(t, ok, "Координата %+v должна отклоняться", v)
	}
}

func TestVec3FloorDiv(t *testing.T) {
	v := Vec3{X: -1, Y: 15, Z: -16}
	assert.Equal(t, Vec3{X: -1, Y: 0, Z: -1}, v.FloorDiv(16), "Деление должно округляться вниз")

	v = Vec3{X: -17, Y: 16, Z: 33}
	assert.Equal(t, Vec3{X: -2, Y: 1, Z: 2}, v.FloorDiv(16))
}

func TestVec3Arithmetic(t *testing.T) {
	a := Vec3{X: 1, Y: 2, Z: 3}
	b := Vec3{X: -1, Y: 5, Z: 0}

	assert.Equal(t, Vec3{X: 0, Y: 7, Z: 3}, a.Add(b))
	assert.Equal(t, Vec3{X: 2, Y: -3, Z: 3}, a.Sub(b))
	assert.Equal(t, Vec3{X: 16, Y: 32, Z: 48}, a.Scale(16))
	assert.True(t, a.Equals(Vec3{X: 1, Y: 2, Z: 3}))
	assert.Equal(t, 22.0, a.DistanceTo(b), "DistanceTo возвращает квадрат расстояния")
}
