package transport

// Transport 半双工串口字节通道的最小接口。
// Read 为非阻塞语义：无数据待读时返回 (0, nil)，由上层轮询。
type Transport interface {
	Write(p []byte) (int, error)
	Read(p []byte) (int, error)
	FlushInput() error
}
