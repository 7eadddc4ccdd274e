package provision

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rashedtalukder/core2foraws-unit-lorawan/internal/modem"
	"github.com/rashedtalukder/core2foraws-unit-lorawan/internal/transport"
)

const (
	testDevEUI = "0004A30B001FBC11"
	testAppKey = "8AFE71A145B253E49C3031AD068277A1"
)

func testConfig() modem.Config {
	return modem.Config{
		ResponseTimeout:    30 * time.Millisecond,
		CommandDelay:       time.Millisecond,
		PollInterval:       2 * time.Millisecond,
		MaxAttempts:        3,
		RetryBackoff:       time.Millisecond,
		StatusPollInterval: 10 * time.Millisecond,
	}
}

func newTestProvisioner(ft *transport.Mock) *Provisioner {
	return New(modem.New(ft, testConfig(), nil), nil)
}

func okReplies(n int) []string {
	replies := make([]string, n)
	for i := range replies {
		replies[i] = "OK\r\n"
	}
	return replies
}

func validOTAAConfig() OTAAConfig {
	return OTAAConfig{
		DevEUI: testDevEUI,
		AppEUI: DefaultAppEUI,
		AppKey: testAppKey,
		Mode:   DifferentFreq,
	}
}

func assertFrames(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("写帧数 = %d, want %d: %q", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("第 %d 帧 = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestOTAAScript(t *testing.T) {
	ft := transport.NewMock(okReplies(7)...)
	p := newTestProvisioner(ft)

	if err := p.OTAA(validOTAAConfig()); err != nil {
		t.Fatalf("OTAA() error = %v", err)
	}
	assertFrames(t, ft.WrittenFrames(), []string{
		"AT+CJOINMODE=0\r\n",
		"AT+CDEVEUI=" + testDevEUI + "\r\n",
		"AT+CAPPEUI=" + DefaultAppEUI + "\r\n",
		"AT+CAPPKEY=" + testAppKey + "\r\n",
		"AT+CULDLMODE=2\r\n",
		"AT+CCLASS=0\r\n",
		"AT+CWORKMODE=2\r\n",
	})
}

func TestOTAASameFreqMode(t *testing.T) {
	ft := transport.NewMock(okReplies(7)...)
	p := newTestProvisioner(ft)

	cfg := validOTAAConfig()
	cfg.Mode = SameFreq
	if err := p.OTAA(cfg); err != nil {
		t.Fatalf("OTAA() error = %v", err)
	}
	if got := ft.WrittenFrames()[4]; got != "AT+CULDLMODE=1\r\n" {
		t.Fatalf("同频模式帧 = %q, want AT+CULDLMODE=1", got)
	}
}

func TestOTAAStopsAtFirstFailedStep(t *testing.T) {
	ft := transport.NewMock("OK\r\n", "OK\r\n", "ERROR:1\r\n", "ERROR:1\r\n", "ERROR:1\r\n")
	p := newTestProvisioner(ft)

	err := p.OTAA(validOTAAConfig())
	if !errors.Is(err, modem.ErrProtocol) {
		t.Fatalf("OTAA() error = %v, want ErrProtocol", err)
	}
	if !strings.Contains(err.Error(), "application eui") {
		t.Fatalf("错误未指明失败步骤: %v", err)
	}
	// 前两步各一帧，第三步重试三帧，之后的步骤不再上线
	if got := ft.WriteCount(); got != 5 {
		t.Fatalf("写帧数 = %d, want 5", got)
	}
}

func TestOTAAValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*OTAAConfig)
	}{
		{"DevEUI 过短", func(c *OTAAConfig) { c.DevEUI = "0004A30B" }},
		{"DevEUI 非十六进制", func(c *OTAAConfig) { c.DevEUI = "ZZ04A30B001FBC11" }},
		{"AppEUI 过长", func(c *OTAAConfig) { c.AppEUI += "00" }},
		{"AppKey 长度不足", func(c *OTAAConfig) { c.AppKey = c.AppKey[:30] }},
		{"未知频率模式", func(c *OTAAConfig) { c.Mode = ULDLMode(7) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ft := transport.NewMock()
			p := newTestProvisioner(ft)

			cfg := validOTAAConfig()
			tc.mutate(&cfg)
			if err := p.OTAA(cfg); !errors.Is(err, modem.ErrInvalidArgument) {
				t.Fatalf("OTAA() error = %v, want ErrInvalidArgument", err)
			}
			if got := ft.WriteCount(); got != 0 {
				t.Fatalf("校验失败后仍写串口 %d 次", got)
			}
		})
	}
}
