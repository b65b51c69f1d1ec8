package crawler

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"
)

// discardLogger keeps test output quiet.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeTransport answers from a routing function and counts calls per URL.
type fakeTransport struct {
	mu     sync.Mutex
	calls  map[string]int
	handle func(ctx context.Context, rawURL string, call int) (*Response, error)
}

func newFakeTransport(handle func(ctx context.Context, rawURL string, call int) (*Response, error)) *fakeTransport {
	return &fakeTransport{calls: make(map[string]int), handle: handle}
}

func (f *fakeTransport) Get(ctx context.Context, rawURL string) (*Response, error) {
	f.mu.Lock()
	f.calls[rawURL]++
	call := f.calls[rawURL]
	f.mu.Unlock()
	return f.handle(ctx, rawURL, call)
}

func (f *fakeTransport) Calls(rawURL string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[rawURL]
}

func (f *fakeTransport) Total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

// instantClock fires every timer right away and records the delays asked for.
type instantClock struct {
	mu     sync.Mutex
	delays []time.Duration
}

type noopTimer struct{}

func (noopTimer) Stop() bool { return false }

func (c *instantClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	c.delays = append(c.delays, d)
	c.mu.Unlock()
	go f()
	return noopTimer{}
}

func (c *instantClock) Delays() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.delays...)
}

// memStore keeps saved files in memory.
type memStore struct {
	mu    sync.Mutex
	files map[string][]byte
	saves int
	err   error
}

func newMemStore() *memStore {
	return &memStore{files: make(map[string][]byte)}
}

func (m *memStore) Save(_ context.Context, path string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.saves++
	m.files[path] = append([]byte(nil), data...)
	return nil
}

func (m *memStore) File(path string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[path]
	return data, ok
}

func htmlResponse(rawURL, body string) *Response {
	return &Response{
		URL:         rawURL,
		StatusCode:  200,
		ContentType: "text/html; charset=utf-8",
		Body:        []byte(body),
	}
}
