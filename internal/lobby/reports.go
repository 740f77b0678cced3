package lobby

import (
	"context"
	"errors"
	"sync"

	"arcadehub/internal/protocol"
)

// ReportSink stores end-of-match reports.
type ReportSink interface {
	Record(ctx context.Context, r protocol.MatchReport) error
}

// MemoryReports keeps the most recent reports in a ring.
type MemoryReports struct {
	mu    sync.RWMutex
	buf   []protocol.MatchReport
	next  int
	count int
}

// NewMemoryReports keeps up to size reports.
func NewMemoryReports(size int) *MemoryReports {
	if size <= 0 {
		size = 100
	}
	return &MemoryReports{buf: make([]protocol.MatchReport, size)}
}

func (m *MemoryReports) Record(_ context.Context, r protocol.MatchReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buf[m.next] = r
	m.next = (m.next + 1) % len(m.buf)
	if m.count < len(m.buf) {
		m.count++
	}
	return nil
}

// Recent returns up to limit reports, newest first. limit <= 0 means all.
func (m *MemoryReports) Recent(limit int) []protocol.MatchReport {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 || limit > m.count {
		limit = m.count
	}
	out := make([]protocol.MatchReport, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (m.next - i + len(m.buf)) % len(m.buf)
		out = append(out, m.buf[idx])
	}
	return out
}

// MultiSink records to every sink, collecting failures.
type MultiSink []ReportSink

func (s MultiSink) Record(ctx context.Context, r protocol.MatchReport) error {
	var errs []error
	for _, sink := range s {
		if sink == nil {
			continue
		}
		if err := sink.Record(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
