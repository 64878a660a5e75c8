package feed

import (
	"bytes"
	"io"
	"log/slog"
	"sync"
	"time"
)

func newTestLogger(buf io.Writer) *slog.Logger {
	if buf == nil {
		buf = &bytes.Buffer{}
	}
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// recordingMetrics は記録内容を保持するMetricsCollectorのモック。
type recordingMetrics struct {
	mu          sync.Mutex
	successes   int
	failures    map[string]int
	statuses    map[int]int
	latencies   int
	rejected    map[string]int
	served      int
	staleServes int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		failures: map[string]int{},
		statuses: map[int]int{},
		rejected: map[string]int{},
	}
}

func (m *recordingMetrics) RecordFetchSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.successes++
}

func (m *recordingMetrics) RecordFetchFailure(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[reason]++
}

func (m *recordingMetrics) RecordHTTPStatus(statusCode int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[statusCode]++
}

func (m *recordingMetrics) RecordFetchLatency(time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencies++
}

func (m *recordingMetrics) RecordItemRejected(rule string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejected[rule]++
}

func (m *recordingMetrics) RecordItemsServed(count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.served = count
}

func (m *recordingMetrics) RecordStaleServe() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.staleServes++
}
