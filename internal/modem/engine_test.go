package modem

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rashedtalukder/core2foraws-unit-lorawan/internal/atcmd"
	"github.com/rashedtalukder/core2foraws-unit-lorawan/internal/transport"
)

// 测试用的紧凑时序，语义与默认配置一致
func testConfig() Config {
	return Config{
		ResponseTimeout:    30 * time.Millisecond,
		CommandDelay:       time.Millisecond,
		PollInterval:       2 * time.Millisecond,
		MaxAttempts:        3,
		RetryBackoff:       time.Millisecond,
		StatusPollInterval: 10 * time.Millisecond,
	}
}

func newTestModem(ft *transport.Mock) *Modem {
	return New(ft, testConfig(), nil)
}

func TestExchangeSuccess(t *testing.T) {
	ft := transport.NewMock("OK\r\n")
	m := newTestModem(ft)

	resp, err := m.Execute(atcmd.New("CSAVE"), time.Second)
	if err != nil {
		t.Fatalf("执行失败: %v", err)
	}
	if !resp.OK() {
		t.Fatalf("期望成功应答，实际 %v", resp.Outcome)
	}
	frames := ft.WrittenFrames()
	if len(frames) != 1 {
		t.Fatalf("期望写入1帧，实际 %d", len(frames))
	}
	if frames[0] != "AT+CSAVE\r\n" {
		t.Fatalf("帧内容错误: %q", frames[0])
	}
	if ft.FlushCount() != 1 {
		t.Fatalf("写帧前应清残留1次，实际 %d", ft.FlushCount())
	}
}

func TestExchangeTimeoutExhaustsAttempts(t *testing.T) {
	ft := transport.NewMock() // 全程静默
	m := newTestModem(ft)

	start := time.Now()
	_, err := m.Execute(atcmd.New("CSTATUS?"), 30*time.Millisecond)
	if err == nil {
		t.Fatal("静默设备应返回错误")
	}
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("期望超时错误，实际: %v", err)
	}
	if got := ft.WriteCount(); got != 3 {
		t.Fatalf("期望恰好尝试3次，实际 %d", got)
	}
	if !strings.Contains(err.Error(), "after 3 attempts") {
		t.Fatalf("终态错误应标注尝试次数: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 90*time.Millisecond {
		t.Fatalf("三次30ms应答窗口至少90ms，实际 %v", elapsed)
	}
}

func TestExchangeRecoversAfterSilence(t *testing.T) {
	ft := transport.NewMock("", "OK\r\n")
	m := newTestModem(ft)

	if _, err := m.Execute(atcmd.New("CSAVE"), 30*time.Millisecond); err != nil {
		t.Fatalf("第二次尝试应成功: %v", err)
	}
	if got := ft.WriteCount(); got != 2 {
		t.Fatalf("期望尝试2次，实际 %d", got)
	}
}

func TestExchangeErrorReplyRetried(t *testing.T) {
	ft := transport.NewMock("ERROR:2\r\n", "ERROR:2\r\n", "ERROR:2\r\n")
	m := newTestModem(ft)

	_, err := m.Execute(atcmd.New("CDATARATE", "3"), time.Second)
	if !errors.Is(err, ErrProtocol) {
		t.Fatalf("期望设备错误，实际: %v", err)
	}
	if got := ft.WriteCount(); got != 3 {
		t.Fatalf("ERROR 应答同样要重试满3次，实际 %d", got)
	}
	if !strings.Contains(err.Error(), "invalid parameter") {
		t.Fatalf("终态错误应带错误码解释: %v", err)
	}
}

func TestExchangeRecoversAfterErrorReply(t *testing.T) {
	ft := transport.NewMock("ERROR:3\r\n", "OK\r\n")
	m := newTestModem(ft)

	if _, err := m.Execute(atcmd.New("CSAVE"), time.Second); err != nil {
		t.Fatalf("忙过之后的重试应成功: %v", err)
	}
	if got := ft.WriteCount(); got != 2 {
		t.Fatalf("期望尝试2次，实际 %d", got)
	}
}

func TestExchangeMalformedReplyRetried(t *testing.T) {
	ft := transport.NewMock("???\r\n", "???\r\n", "???\r\n")
	m := newTestModem(ft)

	_, err := m.Execute(atcmd.New("CSTATUS?"), time.Second)
	if !errors.Is(err, ErrMalformedReply) {
		t.Fatalf("期望无法识别错误，实际: %v", err)
	}
	if got := ft.WriteCount(); got != 3 {
		t.Fatalf("乱码应答同样要重试满3次，实际 %d", got)
	}
}

func TestExchangeWriteFailureRetried(t *testing.T) {
	ft := transport.NewMock()
	ft.FailWrites(errors.New("port gone"))
	m := newTestModem(ft)

	_, err := m.Execute(atcmd.New("CSAVE"), time.Second)
	if err == nil {
		t.Fatal("写失败应返回错误")
	}
	if !strings.Contains(err.Error(), "write frame") {
		t.Fatalf("终态错误应指向写失败: %v", err)
	}
	if got := ft.FlushCount(); got != 3 {
		t.Fatalf("每次尝试都应先清残留，期望3次，实际 %d", got)
	}
}

func TestExchangeReadFailureRetried(t *testing.T) {
	ft := transport.NewMock("OK\r\n")
	ft.FailReads(errors.New("port read gone"))
	m := newTestModem(ft)

	_, err := m.Execute(atcmd.New("CSAVE"), time.Second)
	if err == nil {
		t.Fatal("读失败应返回错误")
	}
	if !strings.Contains(err.Error(), "read response") {
		t.Fatalf("终态错误应指向读失败: %v", err)
	}
	if got := ft.WriteCount(); got != 3 {
		t.Fatalf("读失败应重试满3次，实际 %d", got)
	}
}

func TestExchangeRejectsBadInput(t *testing.T) {
	t.Run("空指令", func(t *testing.T) {
		ft := transport.NewMock()
		m := newTestModem(ft)
		if _, err := m.Execute(atcmd.New(""), time.Second); !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("空指令应拒绝: %v", err)
		}
		if ft.WriteCount() != 0 {
			t.Fatal("被拒绝的指令不应触达串口")
		}
	})

	t.Run("非法超时", func(t *testing.T) {
		ft := transport.NewMock()
		m := newTestModem(ft)
		if _, err := m.Execute(atcmd.New("CSAVE"), 0); !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("零超时应拒绝: %v", err)
		}
		if ft.WriteCount() != 0 {
			t.Fatal("被拒绝的指令不应触达串口")
		}
	})

	t.Run("参数带换行", func(t *testing.T) {
		ft := transport.NewMock()
		m := newTestModem(ft)
		if _, err := m.Execute(atcmd.New("CSAVE", "a\r\nb"), time.Second); !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("换行参数应拒绝: %v", err)
		}
		if ft.WriteCount() != 0 {
			t.Fatal("被拒绝的指令不应触达串口")
		}
	})
}
