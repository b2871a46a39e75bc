package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel(" debug ")
	require.NoError(t, err)
	assert.Equal(t, DEBUG, level)

	level, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, INFO, level, "Пустая строка означает INFO")

	_, err = ParseLevel("verbose")
	assert.Error(t, err)
}

func TestWriterLoggerFiltersLevels(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger("sim", &buf, WARN)

	l.Info("не должно попасть")
	l.Warn("тик %d отстаёт", 42)
	l.Error("сбой")

	out := buf.String()
	assert.NotContains(t, out, "не должно попасть")
	assert.Contains(t, out, "[WARN] [sim] тик 42 отстаёт")
	assert.Contains(t, out, "[ERROR] [sim] сбой")
}

func TestFileLoggerWritesAllLevels(t *testing.T) {
	dir := t.TempDir()
	optionsMu.Lock()
	saved := options
	options = Options{Dir: dir, ConsoleLevel: ERROR, FileLevel: TRACE}
	optionsMu.Unlock()
	t.Cleanup(func() {
		optionsMu.Lock()
		options = saved
		optionsMu.Unlock()
	})

	l, err := NewLogger("terrain")
	require.NoError(t, err)
	l.Trace("мелкая деталь")
	require.NoError(t, l.Close())
	require.NoError(t, l.Close(), "Повторное закрытие безопасно")

	files, err := filepath.Glob(filepath.Join(dir, "terrain_*.log"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "[TRACE] [terrain] мелкая деталь")
}

func TestHexDumpLimit(t *testing.T) {
	assert.Equal(t, "No data", HexDump(nil))
	dump := HexDump(make([]byte, 1024))
	assert.Equal(t, 16, bytes.Count([]byte(dump), []byte("\n")), "Дамп ограничен 256 байтами")
}
