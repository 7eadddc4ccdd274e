package modem

import (
	"errors"
	"testing"
	"time"

	"github.com/rashedtalukder/core2foraws-unit-lorawan/internal/transport"
)

type joinOutcome struct {
	joined bool
	code   int
	at     time.Duration
}

func TestJoinMonitorSuccess(t *testing.T) {
	ft := transport.NewMock(
		"+CSTATUS:01\r\nOK\r\n",
		"+CSTATUS:02\r\nOK\r\n",
		"+CSTATUS:04\r\nOK\r\n")
	m := newTestModem(ft)

	start := time.Now()
	got := make(chan joinOutcome, 2)
	jm, err := m.StartJoinMonitor(5*time.Second, func(joined bool, code int) {
		got <- joinOutcome{joined, code, time.Since(start)}
	})
	if err != nil {
		t.Fatalf("启动失败: %v", err)
	}
	defer jm.Stop()

	select {
	case r := <-got:
		if !r.joined || r.code != 0 {
			t.Fatalf("期望 (true,0)，实际 (%v,%d)", r.joined, r.code)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("未收到入网回调")
	}

	// 回调只许一次
	select {
	case r := <-got:
		t.Fatalf("回调不应重复: %+v", r)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestJoinMonitorTimeout(t *testing.T) {
	ft := transport.NewMock()
	ft.SetDefaultReply("+CSTATUS:01\r\nOK\r\n")
	m := newTestModem(ft)

	const timeout = 150 * time.Millisecond
	start := time.Now()
	got := make(chan joinOutcome, 2)
	jm, err := m.StartJoinMonitor(timeout, func(joined bool, code int) {
		got <- joinOutcome{joined, code, time.Since(start)}
	})
	if err != nil {
		t.Fatalf("启动失败: %v", err)
	}
	defer jm.Stop()

	select {
	case r := <-got:
		if r.joined || r.code != 1 {
			t.Fatalf("期望 (false,1)，实际 (%v,%d)", r.joined, r.code)
		}
		if r.at < timeout {
			t.Fatalf("回调早于超时线: %v < %v", r.at, timeout)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("未收到超时回调")
	}

	select {
	case r := <-got:
		t.Fatalf("回调不应重复: %+v", r)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestJoinMonitorStopSuppressesCallback(t *testing.T) {
	ft := transport.NewMock()
	ft.SetDefaultReply("+CSTATUS:01\r\nOK\r\n")
	m := newTestModem(ft)

	fired := make(chan struct{}, 1)
	jm, err := m.StartJoinMonitor(10*time.Second, func(bool, int) {
		fired <- struct{}{}
	})
	if err != nil {
		t.Fatalf("启动失败: %v", err)
	}

	time.Sleep(35 * time.Millisecond) // 跑过几轮轮询
	jm.Stop()

	select {
	case <-fired:
		t.Fatal("Stop 之后不应再有回调")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestJoinMonitorNilCallbackRejected(t *testing.T) {
	m := newTestModem(transport.NewMock())
	if _, err := m.StartJoinMonitor(time.Second, nil); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("nil 回调应拒绝: %v", err)
	}
}
