package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/annel0/opencraft/internal/eventbus"
	"github.com/annel0/opencraft/internal/replication"
	"github.com/annel0/opencraft/internal/world/block"
)

const (
	defaultNatsURL = "nats://127.0.0.1:4222"
	timeFormat     = "2006-01-02T15:04:05Z"
)

func main() {
	var (
		natsURL    = flag.String("nats", defaultNatsURL, "NATS server URL")
		stream     = flag.String("stream", "TERRAIN", "JetStream stream name")
		command    = flag.String("cmd", "tail", "Command: tail, stats")
		eventTypes = flag.String("types", "", "Event types filter (comma-separated)")
		sources    = flag.String("sources", "", "Sources filter (comma-separated)")
		since      = flag.String("since", "", "Skip events older than duration or time (e.g., 30m, 2006-01-02T15:04:05Z)")
		limit      = flag.Int("limit", 100, "Maximum number of events (0 - unlimited)")
		window     = flag.Duration("window", 10*time.Second, "Collection window for stats")
	)
	flag.Parse()

	bus, err := eventbus.NewJetStreamBus(*natsURL, *stream, 24*time.Hour)
	if err != nil {
		log.Fatalf("❌ Failed to connect to NATS: %v", err)
	}
	defer bus.Close()

	codec, err := replication.NewCodec()
	if err != nil {
		log.Fatalf("❌ Failed to create snapshot codec: %v", err)
	}
	defer codec.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sinceTime, err := parseSinceTime(*since, time.Now())
	if err != nil {
		log.Fatalf("❌ Invalid since: %v", err)
	}

	filter := eventbus.Filter{
		Types:   parseStringList(*eventTypes),
		Sources: parseStringList(*sources),
	}

	switch *command {
	case "tail":
		if err := tailEvents(ctx, bus, codec, filter, sinceTime, *limit); err != nil {
			log.Fatalf("❌ Tail failed: %v", err)
		}
	case "stats":
		if err := showStats(ctx, bus, filter, sinceTime, *window); err != nil {
			log.Fatalf("❌ Stats failed: %v", err)
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", *command)
		flag.Usage()
		os.Exit(1)
	}
}

// tailEvents выводит события стрима до лимита или сигнала
func tailEvents(ctx context.Context, bus eventbus.EventBus, codec *replication.Codec, f eventbus.Filter, since time.Time, limit int) error {
	fmt.Printf("🎬 Tailing events (limit: %d)\n", limit)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu    sync.Mutex
		count int
	)
	sub, err := bus.Subscribe(ctx, f, func(_ context.Context, ev *eventbus.Envelope) {
		if ev.Timestamp.Before(since) {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if limit > 0 && count >= limit {
			return
		}
		count++
		fmt.Println(describeEvent(ev, codec))
		if limit > 0 && count >= limit {
			cancel()
		}
	})
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	<-ctx.Done()
	fmt.Printf("\n📊 Total events: %d\n", count)
	return nil
}

// showStats считает события по типам в течение окна
func showStats(ctx context.Context, bus eventbus.EventBus, f eventbus.Filter, since time.Time, window time.Duration) error {
	fmt.Printf("📈 Collecting event stats for %v...\n", window)

	counter := newTypeCounter()
	sub, err := bus.Subscribe(ctx, f, func(_ context.Context, ev *eventbus.Envelope) {
		if !ev.Timestamp.Before(since) {
			counter.add(ev.EventType)
		}
	})
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	select {
	case <-ctx.Done():
	case <-time.After(window):
	}

	fmt.Print(counter.String())
	return nil
}

// describeEvent форматирует событие в одну-две строки
func describeEvent(ev *eventbus.Envelope, codec *replication.Codec) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s [%s] %s",
		ev.Timestamp.Format("15:04:05"),
		ev.Source,
		ev.EventType,
		ev.ID)

	switch ev.EventType {
	case eventbus.TerrainModified:
		var payload eventbus.TerrainModifiedEvent
		if err := ev.DecodeJSON(&payload); err != nil {
			fmt.Fprintf(&b, "\n  ⚠️ %v", err)
			break
		}
		fmt.Fprintf(&b, "\n  Chunk: %v Epoch: %d Changed: %d Full: %v",
			payload.Location, payload.Epoch, payload.Changed, payload.Full)
	case eventbus.ChunkRemesh:
		snapshot, err := codec.Decode(ev.Payload)
		if err != nil {
			fmt.Fprintf(&b, "\n  ⚠️ %v", err)
			break
		}
		solid := 0
		for _, t := range snapshot.Blocks {
			if t != block.Air {
				solid++
			}
		}
		fmt.Fprintf(&b, "\n  Chunk: %v Epoch: %d Solid: %d/%d Bytes: %d",
			snapshot.Location, snapshot.Epoch, solid, len(snapshot.Blocks), len(ev.Payload))
	}
	return b.String()
}

// typeCounter считает события по типам
type typeCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func newTypeCounter() *typeCounter {
	return &typeCounter{counts: make(map[string]int)}
}

func (c *typeCounter) add(eventType string) {
	c.mu.Lock()
	c.counts[eventType]++
	c.mu.Unlock()
}

func (c *typeCounter) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	types := make([]string, 0, len(c.counts))
	total := 0
	for t, n := range c.counts {
		types = append(types, t)
		total += n
	}
	sort.Strings(types)

	var b strings.Builder
	fmt.Fprintf(&b, "Total events: %d\n", total)
	for _, t := range types {
		fmt.Fprintf(&b, "  %-20s %d\n", t, c.counts[t])
	}
	return b.String()
}

// parseStringList парсит строку с разделителями-запятыми
func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// parseSinceTime парсит относительное время типа "1h", "30m" или абсолютное время
func parseSinceTime(since string, from time.Time) (time.Time, error) {
	if since == "" {
		return time.Time{}, nil
	}

	duration, err := time.ParseDuration(since)
	if err != nil {
		// Пробуем парсить как абсолютное время
		return time.Parse(timeFormat, since)
	}

	return from.Add(-duration), nil
}
