package refresh

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"

	"github.com/shiroinekotfs/DanesfieldApp/internal/core/config"
)

type fakeLoader struct {
	mu      sync.Mutex
	calls   int
	applied bool
	err     error
	fired   chan struct{}
}

func newFakeLoader() *fakeLoader {
	return &fakeLoader{applied: true, fired: make(chan struct{}, 16)}
}

func (f *fakeLoader) Load(context.Context) (bool, error) {
	f.mu.Lock()
	f.calls++
	applied, err := f.applied, f.err
	f.mu.Unlock()
	select {
	case f.fired <- struct{}{}:
	default:
	}
	return applied, err
}

func (f *fakeLoader) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeLoader) fail(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func waitFired(t *testing.T, f *fakeLoader) {
	t.Helper()
	select {
	case <-f.fired:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}

func newConsumerForTest(ld Loader) *Consumer {
	cfg := config.RefreshCfg{
		Enabled: true, Brokers: "x", Topic: "dataset-events",
		GroupID: "g", Debounce: 20 * time.Millisecond,
	}
	return New(cfg, slog.Default(), ld)
}

func eventBytes(dataset string, ts time.Time) []byte {
	b, _ := json.Marshal(Event{Version: 1, Op: "updated", DatasetID: dataset, TS: ts})
	return b
}

func msgFor(offset int64, value []byte) *sarama.ConsumerMessage {
	return &sarama.ConsumerMessage{Topic: "dataset-events", Partition: 0, Offset: offset, Value: value}
}

type sess struct {
	ctx    context.Context
	mu     sync.Mutex
	marked []int64
}

func (s *sess) Claims() map[string][]int32 { return nil }
func (s *sess) MemberID() string           { return "" }
func (s *sess) GenerationID() int32        { return 0 }
func (s *sess) MarkMessage(m *sarama.ConsumerMessage, _ string) {
	s.mu.Lock()
	s.marked = append(s.marked, m.Offset)
	s.mu.Unlock()
}
func (s *sess) ResetOffset(_ string, _ int32, _ int64, _ string) {}
func (s *sess) MarkOffset(_ string, _ int32, _ int64, _ string)  {}
func (s *sess) Context() context.Context                         { return s.ctx }
func (s *sess) Errors() <-chan error                             { return nil }
func (s *sess) Commit()                                          {}

type claim struct {
	msgs chan *sarama.ConsumerMessage
}

func (c *claim) Topic() string                            { return "dataset-events" }
func (c *claim) Partition() int32                         { return 0 }
func (c *claim) InitialOffset() int64                     { return 0 }
func (c *claim) HighWaterMarkOffset() int64               { return 0 }
func (c *claim) Messages() <-chan *sarama.ConsumerMessage { return c.msgs }

func TestClaim_MarksEveryMessageIncludingMalformed(t *testing.T) {
	ld := newFakeLoader()
	c := newConsumerForTest(ld)
	g := &groupHandler{process: c.handleMessage}

	ch := make(chan *sarama.ConsumerMessage, 3)
	ch <- msgFor(10, []byte("not json"))
	ch <- msgFor(11, eventBytes("ds-1", mustTS()))
	ch <- msgFor(12, eventBytes("ds-2", mustTS()))
	close(ch)

	s := &sess{ctx: t.Context()}
	if err := g.ConsumeClaim(s, &claim{msgs: ch}); err != nil {
		t.Fatalf("ConsumeClaim: %v", err)
	}
	if len(s.marked) != 3 || s.marked[0] != 10 || s.marked[2] != 12 {
		t.Fatalf("marked offsets=%v want [10 11 12]", s.marked)
	}

	waitFired(t, ld)
	time.Sleep(60 * time.Millisecond)
	if got := ld.count(); got != 1 {
		t.Fatalf("reloads = %d, want 1 (burst must coalesce)", got)
	}
}

func TestDebounce_CoalescesBurst(t *testing.T) {
	ld := newFakeLoader()
	c := newConsumerForTest(ld)

	for i := 0; i < 5; i++ {
		msg := msgFor(int64(i), eventBytes(fmt.Sprintf("ds-%d", i), mustTS()))
		if err := c.handleMessage(t.Context(), msg); err != nil {
			t.Fatalf("handleMessage: %v", err)
		}
	}

	waitFired(t, ld)
	time.Sleep(60 * time.Millisecond)
	if got := ld.count(); got != 1 {
		t.Fatalf("reloads = %d, want 1", got)
	}
}

func TestReplayedEventDoesNotRetrigger(t *testing.T) {
	ld := newFakeLoader()
	c := newConsumerForTest(ld)
	ts := mustTS()

	if err := c.handleMessage(t.Context(), msgFor(1, eventBytes("ds-1", ts))); err != nil {
		t.Fatalf("handleMessage: %v", err)
	}
	waitFired(t, ld)

	// Same dataset, same and older timestamps: replays, not changes.
	_ = c.handleMessage(t.Context(), msgFor(2, eventBytes("ds-1", ts)))
	_ = c.handleMessage(t.Context(), msgFor(3, eventBytes("ds-1", ts.Add(-time.Second))))
	time.Sleep(80 * time.Millisecond)

	if got := ld.count(); got != 1 {
		t.Fatalf("reloads = %d, want 1", got)
	}
}

func TestFailedReloadIsRetriggeredByNextEvent(t *testing.T) {
	ld := newFakeLoader()
	ld.fail(errors.New("backend down"))
	c := newConsumerForTest(ld)
	ts := mustTS()

	if err := c.handleMessage(t.Context(), msgFor(1, eventBytes("ds-1", ts))); err != nil {
		t.Fatalf("handleMessage: %v", err)
	}
	waitFired(t, ld)

	ld.fail(nil)
	if err := c.handleMessage(t.Context(), msgFor(2, eventBytes("ds-1", ts.Add(time.Second)))); err != nil {
		t.Fatalf("handleMessage: %v", err)
	}
	waitFired(t, ld)

	if got := ld.count(); got != 2 {
		t.Fatalf("reloads = %d, want 2", got)
	}
}

func TestStart_DisabledIsNoop(t *testing.T) {
	c := New(config.RefreshCfg{Enabled: false}, slog.Default(), nil)
	if err := c.Start(t.Context()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	c.Stop()
}
