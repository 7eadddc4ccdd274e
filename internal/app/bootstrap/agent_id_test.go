package bootstrap

import (
	"strings"
	"testing"
)

func TestGenerateAgentID(t *testing.T) {
	t.Run("环境变量优先", func(t *testing.T) {
		t.Setenv("AGENT_ID", "bench-01")
		if got := GenerateAgentID(); got != "bench-01" {
			t.Errorf("GenerateAgentID() = %q, want bench-01", got)
		}
	})

	t.Run("缺省按主机名生成", func(t *testing.T) {
		t.Setenv("AGENT_ID", "")
		got := GenerateAgentID()
		if !strings.HasPrefix(got, "lorawand-") {
			t.Errorf("GenerateAgentID() = %q, want lorawand- prefix", got)
		}
		if other := GenerateAgentID(); other == got {
			t.Errorf("两次生成得到相同ID %q", got)
		}
	})
}
