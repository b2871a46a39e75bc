package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/annel0/opencraft/internal/api"
	"github.com/annel0/opencraft/internal/config"
	"github.com/annel0/opencraft/internal/eventbus"
	"github.com/annel0/opencraft/internal/logging"
	"github.com/annel0/opencraft/internal/metrics"
	"github.com/annel0/opencraft/internal/observability"
	"github.com/annel0/opencraft/internal/player"
	"github.com/annel0/opencraft/internal/replication"
	"github.com/annel0/opencraft/internal/sim"
	"github.com/annel0/opencraft/internal/terrain"
	"github.com/annel0/opencraft/internal/vec"
	"github.com/annel0/opencraft/internal/world"
	"github.com/annel0/opencraft/internal/world/block"
)

func main() {
	configPath := flag.String("config", "", "Путь к YAML конфигурации (по умолчанию GAME_CONFIG)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		log.Printf("⚠️ %v, используется INFO", err)
	}
	if err := logging.InitDefaultLogger(cfg.Sim.Role, logging.Options{
		Dir:          cfg.Logging.Dir,
		ConsoleLevel: level,
		FileLevel:    logging.TRACE,
	}); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()

	if err := run(cfg); err != nil {
		logging.Error("❌ %v", err)
		logging.CloseDefaultLogger()
		os.Exit(1)
	}
	logging.Info("👋 Сервер успешно остановлен")
}

func run(cfg *config.Config) error {
	role, err := sim.ParseRole(cfg.Sim.Role)
	if err != nil {
		return err
	}
	logging.Info("🎮 Запуск симуляции мира: роль=%s, seed=%d", role, cfg.World.Seed)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// === ТРАССИРОВКА ===
	shutdownTelemetry, err := observability.InitTelemetry(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.Enabled)
	if err != nil {
		return fmt.Errorf("инициализация трассировки: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logging.Warn("Ошибка остановки трассировки: %v", err)
		}
	}()

	// === МЕТРИКИ ===
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if err := metrics.RegisterProcessCollectors(registry, metrics.NewProcessStats()); err != nil {
		return fmt.Errorf("метрики процесса: %w", err)
	}
	simMetrics, err := metrics.NewSimMetrics(registry)
	if err != nil {
		return fmt.Errorf("метрики симуляции: %w", err)
	}

	// === ШИНА СОБЫТИЙ ===
	bus, err := newBus(cfg.EventBus)
	if err != nil {
		return err
	}
	defer func() {
		if err := bus.Close(); err != nil {
			logging.Warn("Ошибка закрытия шины событий: %v", err)
		}
	}()

	if _, err := eventbus.StartLoggingListener(ctx, bus); err != nil {
		return fmt.Errorf("логирование событий: %w", err)
	}
	exporter, err := eventbus.NewMetricsExporter(bus, registry)
	if err != nil {
		return fmt.Errorf("метрики шины: %w", err)
	}
	exporter.Start()
	defer exporter.Stop()

	// === МИР ===
	store := world.NewChunkStore()
	players := player.NewRegistry()
	for _, o := range cfg.World.Observers {
		pos := vec.Vec3Float{X: o.Position[0], Y: o.Position[1], Z: o.Position[2]}
		if _, err := players.Join(o.ID, o.Name, pos); err != nil {
			return fmt.Errorf("наблюдатель %d: %w", o.ID, err)
		}
		players.ApplyInput(o.ID, player.Input{Yaw: o.Yaw, Pitch: o.Pitch})
		logging.Info("👤 Наблюдатель %q (%d) в точке %v", o.Name, o.ID, pos)
	}

	scanner := player.NewSelectionScanner(store,
		player.WithRaycastLength(cfg.Sim.RaycastLength),
		player.WithCameraYOffset(cfg.Sim.CameraYOffset),
		player.WithWorkers(cfg.Sim.ScanWorkers),
	)

	codec, err := replication.NewCodec()
	if err != nil {
		return fmt.Errorf("кодек снимков: %w", err)
	}
	defer codec.Close()

	loopCfg := sim.Config{
		Role:           role,
		TickRate:       cfg.Sim.TickRate,
		Radius:         cfg.World.Radius,
		VerticalRadius: cfg.World.VerticalRadius,
	}
	opts := []sim.Option{
		sim.WithMetrics(simMetrics),
		sim.WithLogger(logging.GetSimLogger()),
	}

	var publisher *replication.Publisher
	switch role {
	case sim.RoleServer:
		toggle, err := block.ParseBlockType(cfg.Sim.ToggleBlock)
		if err != nil {
			return fmt.Errorf("sim.toggle_block: %w", err)
		}
		modifier := terrain.NewModificationSystem(store, bus, terrain.Config{
			Interval:    cfg.Sim.ModifyInterval,
			UpdateAll:   cfg.Sim.ModifyUpdateAll,
			ToggleBlock: toggle,
			Source:      cfg.Telemetry.ServiceName,
		})
		modifier.SetLogger(logging.GetTerrainLogger())
		publisher = replication.NewPublisher(store, bus, codec, cfg.Telemetry.ServiceName)

		opts = append(opts,
			sim.WithGenerator(world.NewWorldGenerator(cfg.World.Seed)),
			sim.WithModifier(modifier),
			sim.WithRemeshConsumer(publisher),
		)
		logging.Info("🪨 Изменения мира: каждые %.1f с, блок %s, весь чанк=%v",
			modifier.Interval(), toggle, modifier.UpdateAll())

	case sim.RoleClient:
		if cfg.EventBus.URL == "" {
			logging.Warn("⚠️ Реплика без NATS не получит снимки сервера")
		}
		replica := replication.NewReplica(store, codec)
		sub, err := replica.Attach(ctx, bus)
		if err != nil {
			return fmt.Errorf("подписка реплики: %w", err)
		}
		defer sub.Unsubscribe()

		// Снимки применяются в фазе репликации, локальный мешер только подтверждает эпоху
		opts = append(opts, sim.WithReplicator(replica), sim.WithRemeshConsumer(world.RemeshFunc(
			func(ctx context.Context, chunk *world.Chunk, ticket world.RemeshTicket) error {
				logging.Trace("Перестроение реплики %v, эпоха %d", ticket.Location, ticket.Epoch)
				store.AckRemesh(ticket.Ref, ticket.Epoch)
				return nil
			},
		)))
	}

	loop, err := sim.NewLoop(loopCfg, store, players, scanner, opts...)
	if err != nil {
		return fmt.Errorf("цикл симуляции: %w", err)
	}

	// === REST API ===
	gin.SetMode(gin.ReleaseMode)
	restPort := fmt.Sprintf(":%d", cfg.Server.GetRESTPort())
	restServer, err := api.NewRestServer(api.Config{
		Port:      restPort,
		Store:     store,
		Players:   players,
		Loop:      loop,
		Publisher: publisher,
		Bus:       bus,
		Registry:  registry,
		Logger:    logging.GetAPILogger(),
	})
	if err != nil {
		return fmt.Errorf("создание REST API: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return loop.Run(gctx)
	})
	g.Go(func() error {
		return restServer.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		logging.Debug("Остановка REST API...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return restServer.Stop(shutdownCtx)
	})

	logging.Info("✅ Все сервисы запущены")
	logging.Info("   🔄 Тиков в секунду: %d", cfg.Sim.TickRate)
	logging.Info("   🌐 REST API: http://localhost%s", restPort)
	logging.Info("   ❤️  Health check: http://localhost%s/health", restPort)
	logging.Info("   📈 Метрики: http://localhost%s/metrics", restPort)

	if err := g.Wait(); err != nil {
		return err
	}
	logging.Info("📡 Получен сигнал завершения, работа остановлена")
	return nil
}

// newBus выбирает шину: JetStream при заданном URL, иначе в памяти
func newBus(cfg config.EventBusConfig) (eventbus.EventBus, error) {
	if cfg.URL == "" {
		logging.Info("📨 Шина событий в памяти, буфер %d", cfg.Buffer)
		return eventbus.NewMemoryBus(cfg.Buffer), nil
	}

	bus, err := eventbus.NewJetStreamBus(cfg.URL, cfg.Stream, time.Duration(cfg.Retention)*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("подключение к NATS %s: %w", cfg.URL, err)
	}
	logging.Info("📨 Шина событий JetStream: %s, стрим %s", cfg.URL, cfg.Stream)
	return bus, nil
}
