package worker

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"sensorhub/internal/bridge"
	"sensorhub/internal/logger"
)

type blockingWorker struct {
	started atomic.Int32
	stopped atomic.Int32
	stop    chan struct{}
}

func newBlockingWorker() *blockingWorker {
	return &blockingWorker{stop: make(chan struct{})}
}

func (w *blockingWorker) Name() string { return "blocking" }

func (w *blockingWorker) Start() {
	w.started.Add(1)
	<-w.stop
}

func (w *blockingWorker) Stop() {
	if w.stopped.Add(1) == 1 {
		close(w.stop)
	}
}

func TestSchedulerStartStop(t *testing.T) {
	s := NewScheduler(logger.Nop())
	a, b := newBlockingWorker(), newBlockingWorker()
	s.AddWorker(a)
	s.AddWorker(b)

	s.Start()
	deadline := time.Now().Add(time.Second)
	for a.started.Load() == 0 || b.started.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("workers did not start")
		}
		time.Sleep(time.Millisecond)
	}
	if !s.IsRunning() {
		t.Fatal("scheduler should be running")
	}

	s.Stop()
	s.Stop()
	if s.IsRunning() {
		t.Fatal("scheduler should be stopped")
	}
	if a.stopped.Load() != 1 || b.stopped.Load() != 1 {
		t.Fatalf("stop calls = %d, %d; want 1, 1", a.stopped.Load(), b.stopped.Load())
	}

	s.Start()
	if a.started.Load() != 1 {
		t.Fatal("stopped scheduler restarted workers")
	}
}

type fixedStats bridge.Snapshot

func (f fixedStats) Stats() bridge.Snapshot { return bridge.Snapshot(f) }

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestStatsWorkerReportsOnStop(t *testing.T) {
	var out syncBuffer
	log := logger.NewWithWriter(logger.Config{Level: "info", Format: "json"}, &out)
	w := NewStatsWorker(fixedStats{Accepted: 3, Dropped: 1}, time.Hour, log)

	done := make(chan struct{})
	go func() {
		w.Start()
		close(done)
	}()
	w.Stop()
	w.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stats worker did not stop")
	}
	got := out.String()
	if !strings.Contains(got, `"accepted":3`) || !strings.Contains(got, "bridge final stats") {
		t.Fatalf("log = %s", got)
	}
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type recordingHandler struct {
	mu     sync.Mutex
	topics []string
	got    chan struct{}
}

func (h *recordingHandler) Handle(_ context.Context, topic string, _ []byte) {
	h.mu.Lock()
	h.topics = append(h.topics, topic)
	n := len(h.topics)
	h.mu.Unlock()
	if n == 2 {
		close(h.got)
	}
}

func TestMQTTWorkerDeliversInOrder(t *testing.T) {
	h := &recordingHandler{got: make(chan struct{})}
	w := NewMQTTWorker(MQTTConfig{Topic: "ads1115/channel/+"}, h, logger.Nop())

	w.onMessage(nil, fakeMessage{topic: "ads1115/channel/0", payload: []byte(`{"voltage":1}`)})
	w.onMessage(nil, fakeMessage{topic: "ads1115/channel/1", payload: []byte(`{"voltage":2}`)})

	done := make(chan struct{})
	go func() {
		w.run()
		close(done)
	}()

	select {
	case <-h.got:
	case <-time.After(time.Second):
		t.Fatal("messages not delivered")
	}
	w.Stop()
	<-done

	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.topics) != 2 || h.topics[0] != "ads1115/channel/0" || h.topics[1] != "ads1115/channel/1" {
		t.Fatalf("topics = %v", h.topics)
	}
}

func TestMQTTWorkerStopRightAfterStart(t *testing.T) {
	h := &recordingHandler{got: make(chan struct{})}
	w := NewMQTTWorker(MQTTConfig{
		Server:               "tcp://127.0.0.1:1",
		ClientID:             "sensorhub-test",
		Topic:                "ads1115/channel/+",
		ConnectRetryInterval: 10 * time.Millisecond,
	}, h, logger.Nop())

	s := NewScheduler(logger.Nop())
	s.AddWorker(w)
	s.Start()
	w.Stop()

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	if w.ctx.Err() == nil {
		t.Fatal("worker context not cancelled")
	}

	// Start after Stop must not connect or block.
	started := make(chan struct{})
	go func() {
		w.Start()
		close(started)
	}()
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("Start after Stop blocked")
	}
}
