package logging

import (
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LogLevel определяет уровни логирования
type LogLevel int

const (
	TRACE LogLevel = iota
	DEBUG
	INFO
	WARN
	ERROR
)

// String возвращает строковое представление уровня логирования
func (l LogLevel) String() string {
	switch l {
	case TRACE:
		return "TRACE"
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel разбирает имя уровня без учёта регистра
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return TRACE, nil
	case "DEBUG":
		return DEBUG, nil
	case "", "INFO":
		return INFO, nil
	case "WARN", "WARNING":
		return WARN, nil
	case "ERROR":
		return ERROR, nil
	}
	return INFO, fmt.Errorf("неизвестный уровень логирования %q", s)
}

// Logger пишет сообщения в консоль и, если задан каталог, в файл компонента.
// В файл попадают все уровни от minFileLevel, в консоль - от minConsoleLevel.
type Logger struct {
	mu              sync.Mutex
	component       string
	consoleLogger   *log.Logger
	fileLogger      *log.Logger
	file            *os.File
	minConsoleLevel LogLevel
	minFileLevel    LogLevel
}

// Options - параметры инициализации логгеров
type Options struct {
	Dir          string   // Каталог файлов логов; пусто - только консоль
	ConsoleLevel LogLevel // Минимальный уровень для консоли
	FileLevel    LogLevel // Минимальный уровень для файла
}

// DefaultOptions возвращает параметры по умолчанию: logs/, INFO в консоль, TRACE в файл
func DefaultOptions() Options {
	return Options{Dir: "logs", ConsoleLevel: INFO, FileLevel: TRACE}
}

var (
	optionsMu sync.RWMutex
	options   = Options{ConsoleLevel: INFO, FileLevel: TRACE}

	// Логгер по умолчанию до InitDefaultLogger пишет только в stdout
	defaultLogger = NewWriterLogger("", os.Stdout, INFO)
)

func currentOptions() Options {
	optionsMu.RLock()
	defer optionsMu.RUnlock()
	return options
}

// NewWriterLogger создаёт логгер без файла, пишущий в w
func NewWriterLogger(component string, w io.Writer, level LogLevel) *Logger {
	return &Logger{
		component:       component,
		consoleLogger:   log.New(w, "", log.LstdFlags),
		minConsoleLevel: level,
		minFileLevel:    ERROR + 1,
	}
}

// NewLogger создаёт логгер компонента с текущими параметрами.
// Файл <dir>/<component>_<время>.log создаётся, только если каталог задан.
func NewLogger(component string) (*Logger, error) {
	opts := currentOptions()
	l := NewWriterLogger(component, os.Stdout, opts.ConsoleLevel)
	l.minFileLevel = opts.FileLevel
	if opts.Dir == "" {
		return l, nil
	}

	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, fmt.Errorf("ошибка создания директории %s: %w", opts.Dir, err)
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	filename := filepath.Join(opts.Dir, fmt.Sprintf("%s_%s.log", component, timestamp))
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания файла логов: %w", err)
	}

	l.file = file
	l.fileLogger = log.New(file, "", log.LstdFlags)
	return l, nil
}

// InitDefaultLogger настраивает логгер процесса. Без опций используются DefaultOptions.
func InitDefaultLogger(component string, opts ...Options) error {
	o := DefaultOptions()
	if len(opts) > 0 {
		o = opts[0]
	}

	optionsMu.Lock()
	options = o
	optionsMu.Unlock()

	l, err := NewLogger(component)
	if err != nil {
		return err
	}

	old := defaultLogger
	defaultLogger = l
	_ = old.Close()
	return nil
}

// CloseDefaultLogger закрывает файлы логгера процесса и всех компонентов
func CloseDefaultLogger() {
	_ = defaultLogger.Close()
	_ = GetLoggerManager().CloseAll()
}

// Default возвращает логгер процесса
func Default() *Logger {
	return defaultLogger
}

// Close закрывает файл логгера
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	l.fileLogger = nil
	return err
}

// SetLevels меняет пороги консоли и файла
func (l *Logger) SetLevels(console, file LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.minConsoleLevel = console
	l.minFileLevel = file
}

// Component возвращает имя компонента
func (l *Logger) Component() string {
	return l.component
}

func (l *Logger) Trace(format string, args ...interface{}) { l.log(TRACE, format, args...) }
func (l *Logger) Debug(format string, args ...interface{}) { l.log(DEBUG, format, args...) }
func (l *Logger) Info(format string, args ...interface{})  { l.log(INFO, format, args...) }
func (l *Logger) Warn(format string, args ...interface{})  { l.log(WARN, format, args...) }
func (l *Logger) Error(format string, args ...interface{}) { l.log(ERROR, format, args...) }

func (l *Logger) log(level LogLevel, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level < l.minConsoleLevel && (l.fileLogger == nil || level < l.minFileLevel) {
		return
	}

	message := fmt.Sprintf(format, args...)
	if l.component != "" {
		message = fmt.Sprintf("[%s] [%s] %s", level, l.component, message)
	} else {
		message = fmt.Sprintf("[%s] %s", level, message)
	}

	if l.fileLogger != nil && level >= l.minFileLevel {
		l.fileLogger.Println(message)
	}
	if level >= l.minConsoleLevel {
		l.consoleLogger.Println(message)
	}
}

// Функции уровня пакета пишут в логгер процесса

func Trace(format string, args ...interface{}) { defaultLogger.Trace(format, args...) }
func Debug(format string, args ...interface{}) { defaultLogger.Debug(format, args...) }
func Info(format string, args ...interface{})  { defaultLogger.Info(format, args...) }
func Warn(format string, args ...interface{})  { defaultLogger.Warn(format, args...) }
func Error(format string, args ...interface{}) { defaultLogger.Error(format, args...) }

// HexDump создает hex дамп данных
func HexDump(data []byte) string {
	if len(data) == 0 {
		return "No data"
	}

	// Ограничиваем размер дампа до 256 байт
	size := len(data)
	if size > 256 {
		size = 256
	}

	return hex.Dump(data[:size])
}

// LogSnapshotError логирует ошибку разбора снимка чанка вместе с дампом
func LogSnapshotError(source string, err error, data []byte) {
	Error("Ошибка снимка от %s: %v", source, err)
	if len(data) > 0 {
		Debug("Сырые данные (%d байт):\n%s", len(data), HexDump(data))
	}
}
