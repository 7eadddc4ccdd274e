package bootstrap

import (
	"fmt"
	"os"

	"github.com/google/uuid"
)

// GenerateAgentID 生成代理实例ID。
// 优先使用环境变量 AGENT_ID，否则按主机名拼一个短UUID。
func GenerateAgentID() string {
	if agentID := os.Getenv("AGENT_ID"); agentID != "" {
		return agentID
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	shortUUID := uuid.New().String()[:8]
	return fmt.Sprintf("lorawand-%s-%s", hostname, shortUUID)
}
