package atcmd

import "strings"

// 模组上报的两位连接状态码（+CSTATUS: 之后）
const (
	StatusNotJoined  = "01"
	StatusJoining    = "02"
	StatusJoinFailed = "03"
	StatusJoinedOTAA = "04"
	StatusJoinedABP  = "08"
)

// JoinedStatus 是否已入网，仅 04/08 视为已连接
func JoinedStatus(code string) bool {
	return strings.Contains(code, StatusJoinedOTAA) ||
		strings.Contains(code, StatusJoinedABP)
}

// StatusDescription 状态码的可读描述
func StatusDescription(code string) string {
	switch {
	case strings.Contains(code, StatusJoinedOTAA):
		return "network joined (OTAA)"
	case strings.Contains(code, StatusJoinedABP):
		return "network joined (ABP)"
	case strings.Contains(code, StatusJoining):
		return "network join in progress"
	case strings.Contains(code, StatusNotJoined):
		return "not joined to network"
	case strings.Contains(code, StatusJoinFailed):
		return "network join failed"
	default:
		return "unknown connection status"
	}
}
