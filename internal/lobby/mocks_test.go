package lobby

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"arcadehub/internal/protocol"
)

// --- Launcher ---

type MockLauncher struct {
	mock.Mock
}

func (m *MockLauncher) Launch(ctx context.Context, req LaunchRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

// --- PortAllocator ---

type MockPorts struct {
	mock.Mock
}

func (m *MockPorts) Allocate() (int, error) {
	args := m.Called()
	return args.Int(0), args.Error(1)
}

// --- ReportSink ---

type MockSink struct {
	mock.Mock
}

func (m *MockSink) Record(ctx context.Context, r protocol.MatchReport) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

// recorder is a Notifier that keeps what it was sent.
type recorder struct {
	mu   sync.Mutex
	sent []any
}

func (r *recorder) Send(v any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, v)
	return nil
}

func (r *recorder) events() []protocol.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []protocol.Event
	for _, v := range r.sent {
		if ev, ok := v.(protocol.Event); ok {
			out = append(out, ev)
		}
	}
	return out
}
