package metrics

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/process"
)

// ProcessStats - показатели процесса для /api/stats
type ProcessStats struct {
	StartTime time.Time
}

// NewProcessStats фиксирует время старта
func NewProcessStats() *ProcessStats {
	return &ProcessStats{StartTime: time.Now()}
}

// Uptime возвращает время работы процесса в читаемом виде
func (ps *ProcessStats) Uptime() string {
	uptime := time.Since(ps.StartTime)

	days := int(uptime.Hours()) / 24
	hours := int(uptime.Hours()) % 24
	minutes := int(uptime.Minutes()) % 60
	seconds := int(uptime.Seconds()) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dд %dч %dм %dс", days, hours, minutes, seconds)
	case hours > 0:
		return fmt.Sprintf("%dч %dм %dс", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dм %dс", minutes, seconds)
	}
	return fmt.Sprintf("%dс", seconds)
}

// MemoryMB возвращает занятую кучу в мегабайтах
func (ps *ProcessStats) MemoryMB() float64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return float64(m.Alloc) / 1024 / 1024
}

// CPUPercent возвращает загрузку CPU процессом; при ошибке - системную
func (ps *ProcessStats) CPUPercent() (float64, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err == nil {
		if percent, err := proc.CPUPercent(); err == nil {
			return percent, nil
		}
	}

	percents, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		return 0, err
	}
	if len(percents) == 0 {
		return 0, fmt.Errorf("cpu.Percent: нет данных")
	}
	return percents[0], nil
}

// RegisterProcessCollectors регистрирует gauge загрузки CPU и памяти процесса
func RegisterProcessCollectors(reg prometheus.Registerer, ps *ProcessStats) error {
	cpuGauge := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "opencraft", Name: "process_cpu_percent",
		Help: "Загрузка CPU процессом, проценты.",
	}, func() float64 {
		v, _ := ps.CPUPercent()
		return v
	})
	memGauge := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "opencraft", Name: "process_heap_megabytes",
		Help: "Занятая куча процесса, МБ.",
	}, ps.MemoryMB)

	if err := reg.Register(cpuGauge); err != nil {
		return err
	}
	return reg.Register(memGauge)
}
