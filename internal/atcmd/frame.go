package atcmd

import (
	"errors"
	"strings"
)

var (
	ErrEmptyCommand   = errors.New("empty command")
	ErrCommandNewline = errors.New("command contains line break")
)

// Command 一条 AT 指令：助记符加零个或多个位置参数，构帧后不再变更。
// 查询类指令把后缀写进助记符本身（如 "CSTATUS?"），参数经 '=' 逗号拼接。
type Command struct {
	Name string
	Args []string
}

// New 创建指令
func New(name string, args ...string) Command {
	return Command{Name: name, Args: args}
}

// Body 渲染 "AT+" 之后的指令体
func (c Command) Body() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + "=" + strings.Join(c.Args, ",")
}

// Frame 渲染线上帧：AT+<NAME>[=<a1>,<a2>...]\r\n
// 助记符与参数不得携带换行，否则帧边界被破坏。
func (c Command) Frame() ([]byte, error) {
	if c.Name == "" {
		return nil, ErrEmptyCommand
	}
	body := c.Body()
	if strings.ContainsAny(body, "\r\n") {
		return nil, ErrCommandNewline
	}
	return []byte("AT+" + body + "\r\n"), nil
}
