package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации приложения.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Sim       SimConfig       `yaml:"sim"`
	World     WorldConfig     `yaml:"world"`
	EventBus  EventBusConfig  `yaml:"eventbus"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	RESTPort int `yaml:"rest_port"`
}

// SimConfig - параметры симуляции
type SimConfig struct {
	Role            string  `yaml:"role"`              // server | client
	TickRate        int     `yaml:"tick_rate"`         // Тиков в секунду
	RaycastLength   int     `yaml:"raycast_length"`    // Шагов луча выделения
	CameraYOffset   float64 `yaml:"camera_y_offset"`   // Высота камеры над позицией
	ModifyInterval  float64 `yaml:"modify_interval"`   // Минимальный интервал изменений
	ModifyUpdateAll bool    `yaml:"modify_update_all"` // Менять весь чанк
	ToggleBlock     string  `yaml:"toggle_block"`      // Чередующийся с воздухом блок
	ScanWorkers     int     `yaml:"scan_workers"`      // 0 - по числу CPU
}

// WorldConfig - параметры генерации мира
type WorldConfig struct {
	Seed           int64            `yaml:"seed"`
	Radius         int              `yaml:"radius"`          // Радиус загрузки вокруг наблюдателей, в чанках
	VerticalRadius int              `yaml:"vertical_radius"` // Радиус по Y
	Observers      []ObserverConfig `yaml:"observers"`       // Наблюдатели, создаваемые при старте
}

// ObserverConfig - наблюдатель, создаваемый при старте
type ObserverConfig struct {
	ID       uint64     `yaml:"id"`
	Name     string     `yaml:"name"`
	Position [3]float64 `yaml:"position"`
	Yaw      float64    `yaml:"yaw"`
	Pitch    float64    `yaml:"pitch"`
}

type EventBusConfig struct {
	URL       string `yaml:"url"` // Пусто - шина в памяти
	Stream    string `yaml:"stream"`
	Retention int    `yaml:"retention_hours"`
	Buffer    int    `yaml:"buffer"`
}

type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir"`
}

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	return &Config{
		Sim: SimConfig{
			Role:            "server",
			TickRate:        20,
			RaycastLength:   5,
			CameraYOffset:   1.0,
			ModifyInterval:  5.0,
			ModifyUpdateAll: true,
			ToggleBlock:     "stone",
		},
		World: WorldConfig{
			Seed:           1,
			Radius:         2,
			VerticalRadius: 1,
			Observers: []ObserverConfig{
				{ID: 1, Name: "spectator", Position: [3]float64{8.5, 14, 8.5}, Pitch: -0.6},
			},
		},
		EventBus: EventBusConfig{
			Stream:    "TERRAIN",
			Retention: 24,
			Buffer:    1024,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "opencraft",
		},
		Logging: LoggingConfig{
			Level: "info",
			Dir:   "logs",
		},
	}
}

// GetRESTPort возвращает REST API порт с поддержкой fallback значений
func (s *ServerConfig) GetRESTPort() int {
	return getPortWithEnvFallback(s.RESTPort, "GAME_REST_PORT", 8088)
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	// Если порт задан в конфиге и больше 0, используем его
	if configPort > 0 {
		return configPort
	}

	// Пробуем прочитать из environment variable
	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	return defaultPort
}

// IsServer сообщает, является ли процесс авторитетной стороной
func (s *SimConfig) IsServer() bool {
	return !strings.EqualFold(strings.TrimSpace(s.Role), "client")
}

// Validate проверяет значения, которые нельзя исправить подстановкой умолчаний
func (c *Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Sim.Role)) {
	case "", "server", "client":
	default:
		return fmt.Errorf("sim.role: неизвестная роль %q", c.Sim.Role)
	}
	if c.Sim.TickRate < 0 || c.Sim.TickRate > 1000 {
		return fmt.Errorf("sim.tick_rate: %d вне диапазона 0..1000", c.Sim.TickRate)
	}
	if c.Sim.RaycastLength < 0 {
		return fmt.Errorf("sim.raycast_length: %d < 0", c.Sim.RaycastLength)
	}
	if c.World.Radius < 0 || c.World.VerticalRadius < 0 {
		return fmt.Errorf("world: отрицательный радиус")
	}
	return nil
}

// Load читает YAML файл конфигурации поверх значений по умолчанию.
// Если path == "", пытается прочитать из ENV GAME_CONFIG; без файла возвращает Default().
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("GAME_CONFIG")
		if path == "" {
			return cfg, nil // конфиг не задан - использовать дефолты
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("чтение конфигурации %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("разбор конфигурации %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
