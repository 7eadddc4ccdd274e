package provision

import (
	"errors"
	"testing"

	"github.com/rashedtalukder/core2foraws-unit-lorawan/internal/modem"
	"github.com/rashedtalukder/core2foraws-unit-lorawan/internal/transport"
)

func TestInitScript(t *testing.T) {
	ft := transport.NewMock(attachedReply, "OK\r\n", "OK\r\n", "OK\r\n")
	p := newTestProvisioner(ft)

	if err := p.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	assertFrames(t, ft.WrittenFrames(), []string{
		"AT+CGMI?\r\n",
		"AT+ILOGLVL=1\r\n",
		"AT+CSAVE\r\n",
		"AT+IREBOOT=0\r\n",
	})
}

func TestInitRequiresAttachedModule(t *testing.T) {
	ft := transport.NewMock("+CGMI=OTHER\r\nOK\r\n")
	p := newTestProvisioner(ft)

	err := p.Init()
	if !errors.Is(err, modem.ErrNotAttached) {
		t.Fatalf("Init() error = %v, want ErrNotAttached", err)
	}
	if got := ft.WriteCount(); got != 1 {
		t.Fatalf("写帧数 = %d, want 1", got)
	}
}

func TestInitToleratesHousekeepingFailures(t *testing.T) {
	// 日志级别、落盘、重启全部失败，初始化仍算成功
	ft := transport.NewMock(attachedReply)
	ft.SetDefaultReply("ERROR:1\r\n")
	p := newTestProvisioner(ft)

	if err := p.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	// 在位探测一帧，后续三步各重试三帧
	if got := ft.WriteCount(); got != 10 {
		t.Fatalf("写帧数 = %d, want 10", got)
	}
}
