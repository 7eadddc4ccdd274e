package atcmd

import "strings"

// 结构化应答标记。命中任意一个即把应答全文捕获为 Payload，
// 字段级拆分由各操作自行完成（标量、元组、多行表三种格式无法统一）。
const (
	MarkerCGMI      = "+CGMI="
	MarkerCSTATUS   = "+CSTATUS:"
	MarkerCDATARATE = "+CDATARATE:"
	MarkerCTXP      = "+CTXP:"
	MarkerCRSSI     = "+CRSSI:"
	MarkerDTRX      = "+DTRX:"
	MarkerCJOIN     = "+CJOIN:"
)

var markers = []string{
	MarkerCGMI,
	MarkerCSTATUS,
	MarkerCDATARATE,
	MarkerCTXP,
	MarkerCRSSI,
	MarkerDTRX,
	MarkerCJOIN,
}

// Outcome 应答分类
type Outcome int

const (
	OutcomeMalformed Outcome = iota
	OutcomeSuccess
	OutcomeError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeError:
		return "error"
	default:
		return "malformed"
	}
}

// Response 一次交换的分类结果，构造后不可变
type Response struct {
	Outcome Outcome
	Payload string // 命中结构化标记时的应答全文
	Code    string // ERROR 后的短错误码（尽力提取，缺失不算失败）
}

// OK 是否为成功应答
func (r Response) OK() bool { return r.Outcome == OutcomeSuccess }

// Parse 分类原始应答文本。总函数：任何输入都有分类，不返回错误。
// 优先级：OK > ERROR > 裸标记（部分应答省略 OK 前缀）> 无法识别。
func Parse(raw []byte) Response {
	text := string(raw)
	switch {
	case strings.Contains(text, "OK"):
		r := Response{Outcome: OutcomeSuccess}
		if hasMarker(text) {
			r.Payload = text
		}
		return r
	case strings.Contains(text, "ERROR"):
		return Response{Outcome: OutcomeError, Code: errorCode(text)}
	case hasMarker(text):
		return Response{Outcome: OutcomeSuccess, Payload: text}
	default:
		return Response{Outcome: OutcomeMalformed}
	}
}

func hasMarker(s string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// errorCode 提取 "ERROR:" 之后、首个空白之前的短码，上限 15 字符
func errorCode(s string) string {
	i := strings.Index(s, "ERROR")
	rest := s[i+len("ERROR"):]
	if !strings.HasPrefix(rest, ":") {
		return ""
	}
	rest = rest[1:]
	end := strings.IndexFunc(rest, func(r rune) bool {
		return r == '\r' || r == '\n' || r == ' ' || r == '\t'
	})
	if end >= 0 {
		rest = rest[:end]
	}
	if len(rest) > 15 {
		rest = rest[:15]
	}
	return rest
}
