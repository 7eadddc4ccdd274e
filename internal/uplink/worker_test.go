package uplink

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rashedtalukder/core2foraws-unit-lorawan/internal/modem"
)

// scriptedSender 按脚本逐次返回错误，nil 表示该次发送成功
type scriptedSender struct {
	mu   sync.Mutex
	errs []error
	sent [][]byte
}

func (s *scriptedSender) Send(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var err error
	if len(s.errs) > 0 {
		err = s.errs[0]
		s.errs = s.errs[1:]
	}
	if err != nil {
		return err
	}
	s.sent = append(s.sent, append([]byte(nil), p...))
	return nil
}

func (s *scriptedSender) sentPayloads() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.sent))
	copy(out, s.sent)
	return out
}

func fastConfig() Config {
	return Config{
		QueueCapacity:  4,
		TerminalRetain: 8,
		ScanInterval:   5 * time.Millisecond,
		MaxRetries:     3,
		RetryBackoff:   5 * time.Millisecond,
		RatePerMinute:  60000,
		Burst:          10,
	}
}

func awaitState(t *testing.T, w *Worker, id string, want State) Message {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		msg, err := w.Lookup(id)
		if err != nil {
			t.Fatalf("Lookup(%s) error = %v", id, err)
		}
		if msg.State == want {
			return msg
		}
		if time.Now().After(deadline) {
			t.Fatalf("消息 %s 状态 = %s, want %s", id, msg.State, want)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestEnqueueAndDeliver(t *testing.T) {
	sender := &scriptedSender{}
	w := NewWorker(sender, fastConfig(), nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer w.Stop()

	msg, err := w.Enqueue([]byte("hello"))
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if msg.State != StatePending || msg.SizeBytes != 5 {
		t.Fatalf("入队快照 = %+v", msg)
	}

	final := awaitState(t, w, msg.ID, StateDelivered)
	if final.Tries != 1 {
		t.Fatalf("尝试次数 = %d, want 1", final.Tries)
	}
	sent := sender.sentPayloads()
	if len(sent) != 1 || string(sent[0]) != "hello" {
		t.Fatalf("发送内容 = %q", sent)
	}
	if got := w.Depth(); got != 0 {
		t.Fatalf("投递后队列深度 = %d, want 0", got)
	}
}

func TestDeliveryKeepsEnqueueOrder(t *testing.T) {
	sender := &scriptedSender{}
	w := NewWorker(sender, fastConfig(), nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer w.Stop()

	first, err := w.Enqueue([]byte("first"))
	if err != nil {
		t.Fatalf("Enqueue(first) error = %v", err)
	}
	second, err := w.Enqueue([]byte("second"))
	if err != nil {
		t.Fatalf("Enqueue(second) error = %v", err)
	}
	awaitState(t, w, first.ID, StateDelivered)
	awaitState(t, w, second.ID, StateDelivered)

	sent := sender.sentPayloads()
	if len(sent) != 2 || string(sent[0]) != "first" || string(sent[1]) != "second" {
		t.Fatalf("发送顺序 = %q", sent)
	}
}

func TestQueueFull(t *testing.T) {
	cfg := fastConfig()
	cfg.QueueCapacity = 2
	w := NewWorker(&scriptedSender{}, cfg, nil)
	// 不启动工作器，消息停在队列里

	for i := 0; i < 2; i++ {
		if _, err := w.Enqueue([]byte{byte(i + 1)}); err != nil {
			t.Fatalf("Enqueue(%d) error = %v", i, err)
		}
	}
	if _, err := w.Enqueue([]byte("overflow")); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("Enqueue() error = %v, want ErrQueueFull", err)
	}
}

func TestEnqueueEmptyPayloadRejected(t *testing.T) {
	w := NewWorker(&scriptedSender{}, fastConfig(), nil)
	if _, err := w.Enqueue(nil); !errors.Is(err, modem.ErrInvalidArgument) {
		t.Fatalf("Enqueue(nil) error = %v, want ErrInvalidArgument", err)
	}
}

func TestLookupUnknownMessage(t *testing.T) {
	w := NewWorker(&scriptedSender{}, fastConfig(), nil)
	if _, err := w.Lookup("no-such-id"); !errors.Is(err, ErrUnknownMessage) {
		t.Fatalf("Lookup() error = %v, want ErrUnknownMessage", err)
	}
}

func TestTransientFailureRetried(t *testing.T) {
	sender := &scriptedSender{errs: []error{errors.New("serial hiccup")}}
	w := NewWorker(sender, fastConfig(), nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer w.Stop()

	msg, err := w.Enqueue([]byte("retry me"))
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	final := awaitState(t, w, msg.ID, StateDelivered)
	if final.Tries != 2 {
		t.Fatalf("尝试次数 = %d, want 2", final.Tries)
	}
}

func TestRetriesExhausted(t *testing.T) {
	boom := errors.New("device gone")
	sender := &scriptedSender{errs: []error{boom, boom, boom}}
	w := NewWorker(sender, fastConfig(), nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer w.Stop()

	msg, err := w.Enqueue([]byte("doomed"))
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	final := awaitState(t, w, msg.ID, StateFailed)
	if final.Tries != 3 {
		t.Fatalf("尝试次数 = %d, want 3", final.Tries)
	}
	if final.LastError == "" {
		t.Fatal("终态缺少失败原因")
	}
}

func TestPermanentFailureNotRetried(t *testing.T) {
	sender := &scriptedSender{
		errs: []error{fmt.Errorf("%w: 300 bytes over limit", modem.ErrTooLarge)},
	}
	w := NewWorker(sender, fastConfig(), nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer w.Stop()

	msg, err := w.Enqueue([]byte("oversized"))
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	final := awaitState(t, w, msg.ID, StateFailed)
	if final.Tries != 1 {
		t.Fatalf("尝试次数 = %d, want 1", final.Tries)
	}
}

func TestWorkerLifecycle(t *testing.T) {
	w := NewWorker(&scriptedSender{}, fastConfig(), nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := w.Start(context.Background()); err == nil {
		t.Fatal("重复启动应报错")
	}
	if !w.IsRunning() {
		t.Fatal("IsRunning() = false, want true")
	}
	w.Stop()
	if w.IsRunning() {
		t.Fatal("停止后 IsRunning() = true")
	}
	w.Stop() // 幂等
}

func TestTerminalRetention(t *testing.T) {
	cfg := fastConfig()
	cfg.TerminalRetain = 2
	sender := &scriptedSender{}
	w := NewWorker(sender, cfg, nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer w.Stop()

	var ids []string
	for i := 0; i < 3; i++ {
		msg, err := w.Enqueue([]byte{byte(i + 1)})
		if err != nil {
			t.Fatalf("Enqueue(%d) error = %v", i, err)
		}
		awaitState(t, w, msg.ID, StateDelivered)
		ids = append(ids, msg.ID)
	}
	// 超出保留量后最老的终态消息被淘汰
	if _, err := w.Lookup(ids[0]); !errors.Is(err, ErrUnknownMessage) {
		t.Fatalf("Lookup(最老) error = %v, want ErrUnknownMessage", err)
	}
	if _, err := w.Lookup(ids[2]); err != nil {
		t.Fatalf("Lookup(最新) error = %v", err)
	}
}
