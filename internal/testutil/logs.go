package testutil

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/Sternrassler/photo-feed-client/pkg/logging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogBuffer is a goroutine safe log sink.
type LogBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

// Write implements io.Writer.
func (b *LogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// String returns everything logged so far.
func (b *LogBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Contains reports whether s was logged.
func (b *LogBuffer) Contains(s string) bool {
	return strings.Contains(b.String(), s)
}

// CaptureLogs routes debug level logging into a buffer until the test ends.
// Loggers are bound at construction, so call it before creating components.
func CaptureLogs(t testing.TB) *LogBuffer {
	t.Helper()

	prevLogger := log.Logger
	prevLevel := zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prevLogger
		zerolog.SetGlobalLevel(prevLevel)
	})

	buf := &LogBuffer{}
	logging.Setup(logging.Config{Level: logging.LevelDebug, Output: buf})
	return buf
}
