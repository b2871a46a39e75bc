package sim

import (
	"fmt"
	"strings"
)

// Role - сторона симуляции
type Role uint8

const (
	RoleServer Role = iota // Авторитетная сторона, единственная меняет блоки
	RoleClient             // Реплика
)

func (r Role) String() string {
	if r == RoleClient {
		return "client"
	}
	return "server"
}

// ParseRole разбирает имя роли; пустая строка - сервер
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "server":
		return RoleServer, nil
	case "client":
		return RoleClient, nil
	}
	return RoleServer, fmt.Errorf("неизвестная роль %q", s)
}
