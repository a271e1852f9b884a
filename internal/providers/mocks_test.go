package providers

import (
	"sync"
	"time"
)

// local mocks to avoid an import cycle with testutil

type testLogger struct {
	mu    sync.Mutex
	lines map[string][]string
}

func newTestLogger() *testLogger {
	return &testLogger{lines: make(map[string][]string)}
}

func (l *testLogger) add(level, format string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines[level] = append(l.lines[level], format)
}

func (l *testLogger) count(level string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lines[level])
}

func (l *testLogger) Errorf(_ TypeEnum, format string, _ ...interface{}) { l.add("error", format) }
func (l *testLogger) Warnf(_ TypeEnum, format string, _ ...interface{})  { l.add("warn", format) }
func (l *testLogger) Debugf(_ TypeEnum, format string, _ ...interface{}) { l.add("debug", format) }
func (l *testLogger) Infof(_ TypeEnum, format string, _ ...interface{})  { l.add("info", format) }
func (l *testLogger) Fatalf(_ TypeEnum, format string, _ ...interface{}) { l.add("fatal", format) }
func (l *testLogger) Close()                                             {}

type testMetrics struct {
	requestEndpoint string
	requestStatus   int
	requestCalls    int
	durationCalls   int
	hits            int
	misses          int
}

func (m *testMetrics) IncRequestsTotal(endpoint string, status int) {
	m.requestEndpoint = endpoint
	m.requestStatus = status
	m.requestCalls++
}
func (m *testMetrics) ObserveRequestDuration(_ string, _ time.Duration) { m.durationCalls++ }
func (m *testMetrics) IncCacheHits()                                    { m.hits++ }
func (m *testMetrics) IncCacheMisses()                                  { m.misses++ }
func (m *testMetrics) IncToggles(_ string, _ bool)                      {}
func (m *testMetrics) IncViews()                                        {}
func (m *testMetrics) IncStoreErrors(_ string)                          {}
func (m *testMetrics) ObservePersistenceDuration(_ time.Duration)       {}
