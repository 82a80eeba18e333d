package log

import (
	"bytes"
	"os"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	os.Setenv("APP_ENV", "test")
	os.Exit(m.Run())
}

func TestNewLoggerIsSingleton(t *testing.T) {
	a := NewLogger(Options{Level: "debug"})
	b := NewLogger(Options{Level: "error"})
	require.Same(t, a, b)
	assert.Equal(t, logrus.DebugLevel, a.GetLevel())
}

func TestErrorWithTraceID(t *testing.T) {
	l := NewLogger(Options{})
	var buf bytes.Buffer
	l.SetOutput(&buf)
	defer l.SetOutput(os.Stderr)

	id := ErrorWithTraceID(Fields{"request_id": "req-1"}, "boom")
	assert.Equal(t, "req-1", id)

	id = ErrorWithTraceID(nil, "boom")
	assert.Len(t, id, 36)
	assert.Contains(t, buf.String(), id)
}

func TestLoggerConcurrentUse(t *testing.T) {
	var wg sync.WaitGroup
	got := make([]*logrus.Logger, 8)
	for i := range got {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got[i] = Logger()
		}()
	}
	wg.Wait()

	for _, l := range got {
		require.Same(t, got[0], l)
	}
}
