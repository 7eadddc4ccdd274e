package modem

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// HexMessageMaxLen 编码后十六进制字符数上限（256 字节源数据），
// 保护固定大小的发送缓冲，独立于数据速率载荷表。
const HexMessageMaxLen = 512

// EncodeHex 大写十六进制编码：每字节两字符，无分隔符。
// 编码长度超限返回 ErrTooLarge，在编码之后检查。
func EncodeHex(payload []byte) (string, error) {
	encoded := strings.ToUpper(hex.EncodeToString(payload))
	if len(encoded) > HexMessageMaxLen {
		return "", fmt.Errorf("%w: encoded length %d exceeds %d hex chars",
			ErrTooLarge, len(encoded), HexMessageMaxLen)
	}
	return encoded, nil
}

// DecodeHex EncodeHex 的逆变换，大小写均接受。协议本身不需要解码，
// 提供它是为了校验编码可逆。
func DecodeHex(encoded string) ([]byte, error) {
	return hex.DecodeString(encoded)
}
