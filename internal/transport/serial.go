package transport

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// DefaultBaudRate 模组串口速率
const DefaultBaudRate = 115200

// Serial go.bug.st/serial 端口封装。读超时压到最短，
// 让 Read 在无数据时立即返回 0 字节，匹配 Transport 的非阻塞语义。
type Serial struct {
	port serial.Port
	name string
}

// OpenSerial 打开并配置串口（8N1）
func OpenSerial(device string, baud int) (*Serial, error) {
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	port, err := serial.Open(device, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", device, err)
	}
	if err := port.SetReadTimeout(time.Millisecond); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", device, err)
	}
	return &Serial{port: port, name: device}, nil
}

func (s *Serial) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

func (s *Serial) Read(p []byte) (int, error) {
	return s.port.Read(p)
}

// FlushInput 丢弃接收缓冲内的残留字节
func (s *Serial) FlushInput() error {
	return s.port.ResetInputBuffer()
}

// Name 返回设备路径
func (s *Serial) Name() string { return s.name }

func (s *Serial) Close() error {
	return s.port.Close()
}
