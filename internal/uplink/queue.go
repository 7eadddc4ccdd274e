// Package uplink 有界上行队列与按节拍投递的后台工作器。入队立即
// 返回消息号，发送由工作器串行执行，消息状态可随时查询。
package uplink

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrQueueFull 队列已满，调用方应退避后重试
	ErrQueueFull = errors.New("uplink queue full")
	// ErrUnknownMessage 消息号不存在或已被淘汰
	ErrUnknownMessage = errors.New("unknown uplink message")
)

// State 消息生命周期状态
type State string

const (
	StatePending   State = "pending"
	StateSending   State = "sending"
	StateDelivered State = "delivered"
	StateFailed    State = "failed"
)

func (s State) terminal() bool { return s == StateDelivered || s == StateFailed }

// Message 一条上行消息的可见状态。载荷本身不随状态外发。
type Message struct {
	ID         string    `json:"id"`
	State      State     `json:"state"`
	SizeBytes  int       `json:"size_bytes"`
	Tries      int       `json:"tries"`
	LastError  string    `json:"last_error,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	payload   []byte
	notBefore time.Time
}

// queue 有界内存队列。待发消息按入队顺序出队，终态消息保留一段
// 供查询，超出保留量按完成顺序淘汰。
type queue struct {
	mu       sync.Mutex
	capacity int
	retain   int

	inflight int
	pending  []string
	messages map[string]*Message
	finished []string
}

func newQueue(capacity, retain int) *queue {
	return &queue{
		capacity: capacity,
		retain:   retain,
		messages: make(map[string]*Message),
	}
}

func (q *queue) enqueue(payload []byte) (Message, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.inflight >= q.capacity {
		return Message{}, fmt.Errorf("%w: capacity %d", ErrQueueFull, q.capacity)
	}
	now := time.Now()
	m := &Message{
		ID:         uuid.NewString(),
		State:      StatePending,
		SizeBytes:  len(payload),
		EnqueuedAt: now,
		UpdatedAt:  now,
		payload:    append([]byte(nil), payload...),
	}
	q.messages[m.ID] = m
	q.pending = append(q.pending, m.ID)
	q.inflight++
	return snapshot(m), nil
}

// next 取出下一条到期的待发消息，置为 sending 并累加尝试计数。
// 返回的尝试序号从 1 起。
func (q *queue) next(now time.Time) (id string, payload []byte, attempt int, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, mid := range q.pending {
		m := q.messages[mid]
		if m == nil || m.notBefore.After(now) {
			continue
		}
		q.pending = append(q.pending[:i], q.pending[i+1:]...)
		m.State = StateSending
		m.Tries++
		m.UpdatedAt = now
		return m.ID, m.payload, m.Tries, true
	}
	return "", nil, 0, false
}

// delivered 终态：投递成功
func (q *queue) delivered(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	m := q.messages[id]
	if m == nil || m.State.terminal() {
		return
	}
	m.State = StateDelivered
	m.LastError = ""
	m.UpdatedAt = time.Now()
	q.finishLocked(id)
}

// failed 终态：投递失败
func (q *queue) failed(id, reason string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	m := q.messages[id]
	if m == nil || m.State.terminal() {
		return
	}
	m.State = StateFailed
	m.LastError = reason
	m.UpdatedAt = time.Now()
	q.finishLocked(id)
}

// retryLater 发送失败回到待发队列，notBefore 之前不再出队
func (q *queue) retryLater(id, reason string, notBefore time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	m := q.messages[id]
	if m == nil || m.State.terminal() {
		return
	}
	m.State = StatePending
	m.LastError = reason
	m.notBefore = notBefore
	m.UpdatedAt = time.Now()
	q.pending = append(q.pending, id)
}

// requeue 未真正尝试过的消息原样放回，尝试计数回退
func (q *queue) requeue(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	m := q.messages[id]
	if m == nil || m.State.terminal() {
		return
	}
	m.State = StatePending
	if m.Tries > 0 {
		m.Tries--
	}
	m.UpdatedAt = time.Now()
	q.pending = append(q.pending, id)
}

// finishLocked 终态收尾：出飞行计数，入保留区，淘汰最老的终态消息
func (q *queue) finishLocked(id string) {
	q.inflight--
	q.finished = append(q.finished, id)
	for len(q.finished) > q.retain {
		evict := q.finished[0]
		q.finished = q.finished[1:]
		delete(q.messages, evict)
	}
}

func (q *queue) lookup(id string) (Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	m, ok := q.messages[id]
	if !ok {
		return Message{}, false
	}
	return snapshot(m), true
}

// depth 非终态消息数
func (q *queue) depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.inflight
}

// snapshot 复制可见字段，内部载荷不外漏
func snapshot(m *Message) Message {
	out := *m
	out.payload = nil
	out.notBefore = time.Time{}
	return out
}
