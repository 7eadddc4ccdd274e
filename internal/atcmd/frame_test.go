package atcmd

import (
	"testing"
)

func TestCommandFrame(t *testing.T) {
	tests := []struct {
		name    string
		cmd     Command
		want    string
		wantErr error
	}{
		{
			name: "无参数查询",
			cmd:  New("CSTATUS?"),
			want: "AT+CSTATUS?\r\n",
		},
		{
			name: "单参数",
			cmd:  New("CDATARATE", "2"),
			want: "AT+CDATARATE=2\r\n",
		},
		{
			name: "多参数逗号拼接",
			cmd:  New("CJOIN", "1", "1", "10", "8"),
			want: "AT+CJOIN=1,1,10,8\r\n",
		},
		{
			name: "发送帧",
			cmd:  New("DTRX", "1", "2", "5", "48454C4C4F"),
			want: "AT+DTRX=1,2,5,48454C4C4F\r\n",
		},
		{
			name: "助记符内带空格的查询",
			cmd:  New("CRSSI 2?"),
			want: "AT+CRSSI 2?\r\n",
		},
		{
			name:    "空助记符",
			cmd:     New(""),
			wantErr: ErrEmptyCommand,
		},
		{
			name:    "参数携带换行",
			cmd:     New("CDEVEUI", "0011\r\nAT+CRESTORE"),
			wantErr: ErrCommandNewline,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cmd.Frame()
			if tt.wantErr != nil {
				if err != tt.wantErr {
					t.Fatalf("Frame() error = %v, expected %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(got) != tt.want {
				t.Fatalf("Frame() = %q, expected %q", got, tt.want)
			}
		})
	}
}

func TestCommandBody(t *testing.T) {
	if got := New("CSAVE").Body(); got != "CSAVE" {
		t.Fatalf("Body() = %q", got)
	}
	if got := New("CNBTRIALS", "1", "8").Body(); got != "CNBTRIALS=1,8" {
		t.Fatalf("Body() = %q", got)
	}
}
