package player

import (
	"github.com/annel0/opencraft/internal/vec"
	"github.com/go-gl/mathgl/mgl64"
)

// forward - направление взгляда при нулевых углах
var forward = mgl64.Vec3{0, 0, 1}

// CameraDirection возвращает единичный вектор взгляда: RotateY(yaw) * RotateX(-pitch) * forward.
// Положительный pitch поднимает взгляд вверх. Функция чистая, поэтому сервер
// и клиент получают одинаковое выделение при одинаковом вводе.
func CameraDirection(yaw, pitch float64) vec.Vec3Float {
	rotation := mgl64.QuatRotate(yaw, mgl64.Vec3{0, 1, 0}).
		Mul(mgl64.QuatRotate(-pitch, mgl64.Vec3{1, 0, 0}))
	d := rotation.Rotate(forward)
	return vec.Vec3Float{X: d[0], Y: d[1], Z: d[2]}
}

// Direction возвращает направление взгляда для текущего ввода
func (in Input) Direction() vec.Vec3Float {
	return CameraDirection(in.Yaw, in.Pitch)
}
