package logger

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/skyops/aerodrome/core/events"
)

func TestZerologLoggerMethods(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	l := NewZerologLogger("test")
	if l == nil {
		t.Fatalf("nil logger")
	}
	l.Debugf("debug %d", 1)
	l.Debugw("debug", map[string]any{"k": 1})
	l.Infof("info %s", "test")
	l.Warnf("warn")
	l.Errorf("error")
}

type captureLogger struct {
	mu     sync.Mutex
	infos  []string
	warns  []string
	errors []string
}

func (c *captureLogger) Debugf(string, ...any)          {}
func (c *captureLogger) Debugw(string, map[string]any)  {}
func (c *captureLogger) Infof(format string, a ...any)  { c.append(&c.infos, format) }
func (c *captureLogger) Warnf(format string, a ...any)  { c.append(&c.warns, format) }
func (c *captureLogger) Errorf(format string, a ...any) { c.append(&c.errors, format) }

func (c *captureLogger) append(dst *[]string, s string) {
	c.mu.Lock()
	*dst = append(*dst, s)
	c.mu.Unlock()
}

func TestFlightLog_LevelRouting(t *testing.T) {
	rec := &captureLogger{}
	fl := NewFlightLogWith(rec)

	fl.Record(events.New("AA1234", "cleared to land", events.LevelInfo))
	fl.Record(events.New("AA1234", "retrying", events.LevelWarning))
	fl.Record(events.New("AA1234", "declaring emergency landing", events.LevelEmergency))

	assert.Len(t, rec.infos, 1)
	assert.Len(t, rec.warns, 1)
	assert.Len(t, rec.errors, 1)
}
