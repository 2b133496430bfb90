package web

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/cjeanneret/CourseNav/internal/logic/geometry"
)

// PoseView is the JSON form of a position fix.
type PoseView struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Heading float64 `json:"heading"`
	Locked  bool    `json:"locked"`
}

// NewPoseView converts a pose; unavailable fields stay at the -1 sentinel.
func NewPoseView(p geometry.Pose) PoseView {
	return PoseView{X: p.X, Y: p.Y, Heading: p.Heading, Locked: p.Locked()}
}

// StatusEvent is one message on the status stream: a log line or a pose sample.
type StatusEvent struct {
	Time  string    `json:"t"`
	Level string    `json:"l,omitempty"`
	Msg   string    `json:"msg,omitempty"`
	Pose  *PoseView `json:"pose,omitempty"`
}

// StatusBroadcaster fans status events out to every SSE client.
type StatusBroadcaster struct {
	mu      sync.RWMutex
	clients map[chan string]struct{}
	clk     clock.Clock
}

// NewStatusBroadcaster creates a broadcaster stamped with the wall clock.
func NewStatusBroadcaster() *StatusBroadcaster {
	return NewStatusBroadcasterWithClock(clock.New())
}

// NewStatusBroadcasterWithClock lets tests drive timestamps and telemetry ticks.
func NewStatusBroadcasterWithClock(clk clock.Clock) *StatusBroadcaster {
	return &StatusBroadcaster{
		clients: make(map[chan string]struct{}),
		clk:     clk,
	}
}

// Subscribe returns a channel of JSON events and a cleanup function,
// to be called when the client goes away.
func (b *StatusBroadcaster) Subscribe() (<-chan string, func()) {
	ch := make(chan string, 64)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()

	unsub := func() {
		b.mu.Lock()
		delete(b.clients, ch)
		b.mu.Unlock()
		close(ch)
	}
	return ch, unsub
}

// Broadcast sends a log message to all subscribers. Slow clients miss messages.
func (b *StatusBroadcaster) Broadcast(level, msg string) {
	b.send(StatusEvent{Level: level, Msg: msg})
}

// BroadcastMsg is Broadcast at level "info".
func (b *StatusBroadcaster) BroadcastMsg(msg string) {
	b.Broadcast("info", msg)
}

// BroadcastPose sends a pose sample.
func (b *StatusBroadcaster) BroadcastPose(p geometry.Pose) {
	v := NewPoseView(p)
	b.send(StatusEvent{Level: "pose", Pose: &v})
}

func (b *StatusBroadcaster) send(evt StatusEvent) {
	evt.Time = b.clk.Now().Format(time.RFC3339)
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	payload := string(data)

	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.clients {
		select {
		case ch <- payload:
		default:
			// channel full, skip
		}
	}
}

// PublishPoses samples src every period until ctx is cancelled.
func (b *StatusBroadcaster) PublishPoses(ctx context.Context, src PoseSource, every time.Duration) {
	t := b.clk.Ticker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			b.BroadcastPose(src.Pose())
		}
	}
}

// BroadcastWriter adapts the broadcaster to io.Writer so the debug logger
// can mirror its output to the status stream.
func BroadcastWriter(b *StatusBroadcaster) *broadcastWriter {
	return &broadcastWriter{b: b}
}

type broadcastWriter struct {
	b *StatusBroadcaster
}

func (w *broadcastWriter) Write(p []byte) (n int, err error) {
	for _, line := range strings.Split(string(p), "\n") {
		if msg := strings.TrimSpace(line); msg != "" {
			w.b.BroadcastMsg(msg)
		}
	}
	return len(p), nil
}
