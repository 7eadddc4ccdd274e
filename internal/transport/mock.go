package transport

import "sync"

// Mock 脚本化的内存替身，给各层测试共用。第 n 次 Write 取脚本第 n 条
// 应答作为随后可读的数据，空串表示该次写入后设备静默；脚本耗尽后改用
// SetDefaultReply 设定的应答。Read 无数据时返回 (0, nil)，与非阻塞
// 串口口径一致。
type Mock struct {
	mu           sync.Mutex
	script       []string
	defaultReply string
	pending      []byte
	writes       []string
	flushes      int
	writeErr     error
	readErr      error
}

var _ Transport = (*Mock)(nil)

// NewMock 创建脚本替身
func NewMock(script ...string) *Mock {
	return &Mock{script: script}
}

// SetDefaultReply 设定脚本耗尽后的固定应答，空串表示静默
func (m *Mock) SetDefaultReply(reply string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultReply = reply
}

// FailWrites 之后的所有 Write 返回该错误
func (m *Mock) FailWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErr = err
}

// FailReads 之后的所有 Read 返回该错误
func (m *Mock) FailReads(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readErr = err
}

func (m *Mock) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return 0, m.writeErr
	}
	m.writes = append(m.writes, string(p))
	reply := m.defaultReply
	if len(m.script) > 0 {
		reply = m.script[0]
		m.script = m.script[1:]
	}
	if reply != "" {
		m.pending = append(m.pending, reply...)
	}
	return len(p), nil
}

func (m *Mock) Read(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return 0, m.readErr
	}
	if len(m.pending) == 0 {
		return 0, nil
	}
	n := copy(p, m.pending)
	m.pending = m.pending[n:]
	return n, nil
}

func (m *Mock) FlushInput() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushes++
	m.pending = nil
	return nil
}

// WriteCount 已写入的帧数
func (m *Mock) WriteCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.writes)
}

// FlushCount 清空输入的次数
func (m *Mock) FlushCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flushes
}

// WrittenFrames 按序返回全部已写入的帧
func (m *Mock) WrittenFrames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.writes))
	copy(out, m.writes)
	return out
}
