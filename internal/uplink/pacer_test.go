package uplink

import (
	"context"
	"testing"
	"time"
)

func TestPacerImmediateWithinBurst(t *testing.T) {
	p := NewPacer(6000, 2)
	for i := 0; i < 2; i++ {
		waited, err := p.Admit(context.Background())
		if err != nil || waited {
			t.Fatalf("第 %d 次放行 waited=%v err=%v, want 立即放行", i+1, waited, err)
		}
	}
	stats := p.Stats()
	if stats.AllowedTotal != 2 || stats.WaitedTotal != 0 {
		t.Fatalf("统计 = %+v", stats)
	}
}

func TestPacerWaitsWhenExhausted(t *testing.T) {
	// 10 条/秒，补一个令牌约 100ms
	p := NewPacer(600, 1)
	if waited, err := p.Admit(context.Background()); err != nil || waited {
		t.Fatalf("首次放行 waited=%v err=%v", waited, err)
	}
	start := time.Now()
	waited, err := p.Admit(context.Background())
	if err != nil {
		t.Fatalf("Admit() error = %v", err)
	}
	if !waited {
		t.Fatal("令牌耗尽后放行应经历等待")
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Fatalf("等待时长 = %v, 短于令牌补充周期", elapsed)
	}
	if stats := p.Stats(); stats.WaitedTotal != 1 {
		t.Fatalf("WaitedTotal = %d, want 1", stats.WaitedTotal)
	}
}

func TestPacerCancelledWait(t *testing.T) {
	// 一分钟一条，第二次放行遥遥无期
	p := NewPacer(1, 1)
	if _, err := p.Admit(context.Background()); err != nil {
		t.Fatalf("首次放行 error = %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := p.Admit(ctx); err == nil {
		t.Fatal("被取消的等待应返回错误")
	}
}

func TestPacerDefaultsApplied(t *testing.T) {
	p := NewPacer(0, 0)
	stats := p.Stats()
	if stats.PerMinute != DefaultRatePerMinute || stats.Burst != DefaultBurst {
		t.Fatalf("缺省参数 = %+v", stats)
	}
}
