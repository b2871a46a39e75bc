package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/annel0/opencraft/internal/eventbus"
	"github.com/annel0/opencraft/internal/logging"
	"github.com/annel0/opencraft/internal/metrics"
	"github.com/annel0/opencraft/internal/middleware"
	"github.com/annel0/opencraft/internal/player"
	"github.com/annel0/opencraft/internal/replication"
	"github.com/annel0/opencraft/internal/sim"
	"github.com/annel0/opencraft/internal/vec"
	"github.com/annel0/opencraft/internal/world"
	"github.com/annel0/opencraft/internal/world/block"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// StatsSource отдаёт итог последнего тика
type StatsSource interface {
	LastReport() sim.TickReport
	Role() sim.Role
}

// RestServer - отладочный HTTP API над состоянием мира
type RestServer struct {
	router    *gin.Engine
	http      *http.Server
	store     *world.ChunkStore
	players   *player.Registry
	loop      StatsSource
	publisher *replication.Publisher
	bus       eventbus.EventBus
	process   *metrics.ProcessStats
	log       *logging.Logger
}

// Config содержит зависимости REST сервера
type Config struct {
	Port      string // Адрес прослушивания, например ":8088"
	Store     *world.ChunkStore
	Players   *player.Registry
	Loop      StatsSource
	Publisher *replication.Publisher // Необязателен
	Bus       eventbus.EventBus      // Необязателен
	Registry  *prometheus.Registry   // Реестр для метрик API и /metrics
	Logger    *logging.Logger
}

// GenericResponse представляет общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// NewRestServer создает REST API сервер
func NewRestServer(config Config) (*RestServer, error) {
	if config.Port == "" {
		config.Port = ":8088"
	}
	if config.Registry == nil {
		config.Registry = prometheus.NewRegistry()
	}
	if config.Logger == nil {
		config.Logger = logging.Default()
	}

	router := gin.New()        // без стандартного logger/recovery
	router.Use(gin.Recovery()) // добавим только recovery

	// === Observability middleware ===
	router.Use(otelgin.Middleware("debug_api"))
	router.Use(middleware.NewRequestLogger(config.Logger).Handler())

	promMw, err := middleware.NewPrometheusMiddleware("debug_api", config.Registry)
	if err != nil {
		return nil, fmt.Errorf("регистрация метрик API: %w", err)
	}
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router, config.Registry)

	rs := &RestServer{
		router:    router,
		store:     config.Store,
		players:   config.Players,
		loop:      config.Loop,
		publisher: config.Publisher,
		bus:       config.Bus,
		process:   metrics.NewProcessStats(),
		log:       config.Logger,
	}
	rs.http = &http.Server{
		Addr:              config.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	rs.setupRoutes()
	return rs, nil
}

// Handler возвращает http.Handler сервера
func (rs *RestServer) Handler() http.Handler {
	return rs.router
}

// setupRoutes настраивает маршруты REST API
func (rs *RestServer) setupRoutes() {
	rs.router.GET("/health", rs.handleHealth)

	api := rs.router.Group("/api")
	{
		api.GET("/stats", rs.handleStats)
		api.GET("/players", rs.handlePlayers)
		api.GET("/players/:id/selection", rs.handleSelection)
		api.GET("/chunks/:x/:y/:z", rs.handleChunk)
		api.GET("/blocks", rs.handleBlocks)
	}
}

func (rs *RestServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().Unix(),
	})
}

// handleStats отдаёт состояние симуляции и процесса
func (rs *RestServer) handleStats(c *gin.Context) {
	stats := gin.H{
		"chunks":  rs.store.Len(),
		"players": rs.players.Len(),
		"pending": len(rs.store.PendingRemesh()),
	}
	if rs.loop != nil {
		stats["role"] = rs.loop.Role().String()
		stats["tick"] = rs.loop.LastReport()
	}
	if rs.bus != nil {
		stats["eventbus"] = rs.bus.Metrics()
	}

	cpuPercent, _ := rs.process.CPUPercent()
	stats["server"] = gin.H{
		"uptime":      rs.process.Uptime(),
		"memory_mb":   fmt.Sprintf("%.2f", rs.process.MemoryMB()),
		"cpu_percent": fmt.Sprintf("%.2f", cpuPercent),
		"server_time": time.Now().Unix(),
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Статистика получена",
		Data:    stats,
	})
}

func (rs *RestServer) handlePlayers(c *gin.Context) {
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Наблюдатели получены",
		Data:    rs.players.Snapshot(),
	})
}

// handleSelection отдаёт выделение наблюдателя в переносимом виде
func (rs *RestServer) handleSelection(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{Message: "Неверный ID наблюдателя"})
		return
	}

	p, ok := rs.players.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, GenericResponse{Message: "Наблюдатель не найден"})
		return
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Выделение получено",
		Data:    replication.SelectionOf(rs.store, p),
	})
}

// ChunkInfo - метаданные чанка. Блоки не читаются напрямую:
// буфер принадлежит циклу симуляции, а копия доступна через снимок.
type ChunkInfo struct {
	Location      vec.Vec3 `json:"location"`
	Ref           string   `json:"ref"`
	Changes       uint64   `json:"changes"`
	RemeshEpoch   uint64   `json:"remesh_epoch"`
	NeedsRemesh   bool     `json:"needs_remesh"`
	SnapshotEpoch uint64   `json:"snapshot_epoch,omitempty"`
	SnapshotBytes int      `json:"snapshot_bytes,omitempty"`
}

// handleChunk отдаёт метаданные чанка, а с ?format=snapshot - последний сжатый снимок
func (rs *RestServer) handleChunk(c *gin.Context) {
	location, err := parseLocation(c.Param("x"), c.Param("y"), c.Param("z"))
	if err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{Message: err.Error()})
		return
	}

	ref, ok := rs.store.Lookup(location)
	chunk, loaded := rs.store.Chunk(ref)
	if !ok || !loaded {
		c.JSON(http.StatusNotFound, GenericResponse{Message: "Чанк не загружен"})
		return
	}

	info := ChunkInfo{
		Location:    location,
		Ref:         ref.String(),
		Changes:     chunk.ChangeCounter(),
		RemeshEpoch: chunk.RemeshEpoch(),
		NeedsRemesh: chunk.NeedsRemesh(),
	}

	var snapshot []byte
	if rs.publisher != nil {
		if data, epoch, ok := rs.publisher.Latest(location); ok {
			snapshot = data
			info.SnapshotEpoch = epoch
			info.SnapshotBytes = len(data)
		}
	}

	if c.Query("format") == "snapshot" {
		if snapshot == nil {
			c.JSON(http.StatusNotFound, GenericResponse{Message: "Снимок ещё не опубликован"})
			return
		}
		c.Header("X-Snapshot-Epoch", strconv.FormatUint(info.SnapshotEpoch, 10))
		c.Data(http.StatusOK, "application/octet-stream", snapshot)
		return
	}

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Чанк найден",
		Data:    info,
	})
}

// BlockInfo - статические свойства типа блока
type BlockInfo struct {
	ID        block.BlockType `json:"id"`
	Texture   int             `json:"texture"`
	UVSizing  float32         `json:"uv_sizing"`
	Powerable bool            `json:"powerable"`
	Powered   block.BlockType `json:"powered"`
	Depowered block.BlockType `json:"depowered"`
}

// handleBlocks отдаёт таблицу свойств всех типов блоков
func (rs *RestServer) handleBlocks(c *gin.Context) {
	kinds := block.All()
	infos := make([]BlockInfo, 0, len(kinds))
	for _, k := range kinds {
		infos = append(infos, BlockInfo{
			ID:        k,
			Texture:   block.Texture(k),
			UVSizing:  block.UVSizing(k),
			Powerable: block.IsPowerable(k),
			Powered:   block.Powered(k),
			Depowered: block.Depowered(k),
		})
	}
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Типы блоков получены",
		Data:    infos,
	})
}

func parseLocation(xs, ys, zs string) (vec.Vec3, error) {
	var out [3]int
	for i, s := range []string{xs, ys, zs} {
		v, err := strconv.Atoi(s)
		if err != nil {
			return vec.Vec3{}, fmt.Errorf("неверная координата %q", s)
		}
		out[i] = v
	}
	return vec.Vec3{X: out[0], Y: out[1], Z: out[2]}, nil
}

// Start запускает HTTP сервер и блокируется до Stop
func (rs *RestServer) Start() error {
	rs.log.Info("🌐 Отладочный API слушает %s", rs.http.Addr)
	if err := rs.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop корректно останавливает HTTP сервер
func (rs *RestServer) Stop(ctx context.Context) error {
	return rs.http.Shutdown(ctx)
}
