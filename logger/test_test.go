package logger

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTestLoggerMethods(t *testing.T) {
	l := NewTestLogger()

	l.Trace("Trace message", 1)
	l.Debug("Debug message", 2)
	l.Info("Info message", 3)
	l.Warn("Warn message", 4)
	l.Error("Error message", 5)
	l.Fatal("Fatal message", 6)

	entries := l.Entries()
	assert.Len(t, entries, 6)
	for i, severity := range []string{"TRACE", "DEBUG", "INFO", "WARNING", "ERROR", "FATAL"} {
		assert.Equal(t, severity, entries[i].Severity)
		assert.Equal(t, []interface{}{i + 1}, entries[i].Arguments)
	}
}

func TestTestLoggerSharedRecord(t *testing.T) {
	l := NewTestLogger()
	l.WithPrefix("[memory]").With(map[string]interface{}{"k": "v"}).Debug("dropped %d", 2)

	found := l.Find("DEBUG", "dropped 2")
	assert.Len(t, found, 1)
	assert.Equal(t, []string{"[memory]"}, found[0].Prefixes)
	assert.Equal(t, "v", found[0].Metadata["k"])

	l.Reset()
	assert.Empty(t, l.Entries())
}

func TestTestLoggerConcurrent(t *testing.T) {
	l := NewTestLogger()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				l.WithPrefix("[w]").Info("tick")
			}
		}()
	}
	wg.Wait()
	assert.Len(t, l.Entries(), 1000)
}

func TestTestLoggerStack(t *testing.T) {
	a, b := NewTestLogger(), NewTestLogger()
	a.Stack(b).Warn("both")
	assert.Len(t, a.Entries(), 1)
	assert.Len(t, b.Entries(), 1)
}
