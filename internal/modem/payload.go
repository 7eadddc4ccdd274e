package modem

import "fmt"

// US915 频段 DR0..DR4 对应的最大应用载荷（字节）
var us915MaxPayload = [5]int{11, 53, 125, 242, 242}

const (
	// DataRateMin US915 最小数据速率（SF10，距离最远）
	DataRateMin = 0
	// DataRateMax US915 最大数据速率（SF8 500kHz，距离最近）
	DataRateMax = 4

	// MaxMessageSize 跨所有数据速率都安全的载荷上限，等于 DR0 档。
	// 数据速率相关校验与编码长度校验彼此独立，这个常量只是文档口径。
	MaxMessageSize = 11
)

// MaxPayloadForDataRate 数据速率对应的载荷上限。
// 表外索引取最保守一档：少许可是安全的，多许可会丢传输。
func MaxPayloadForDataRate(dataRate uint8) int {
	if dataRate > DataRateMax {
		return us915MaxPayload[0]
	}
	return us915MaxPayload[dataRate]
}

// ValidatePayloadSize 发送前按当前数据速率校验载荷长度
func ValidatePayloadSize(size int, dataRate uint8) error {
	limit := MaxPayloadForDataRate(dataRate)
	if size > limit {
		return fmt.Errorf("%w: %d bytes exceeds DR%d limit of %d bytes",
			ErrTooLarge, size, dataRate, limit)
	}
	return nil
}
