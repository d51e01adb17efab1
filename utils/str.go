package utils

import (
	"bytes"
	"io"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

const (
	ENC_UTF8   = "utf8"
	ENC_GBK    = "gbk"
	ENC_LATIN1 = "latin1"
)

// metadata strings cannot hold ',' and '"' in single-line fields
var (
	metaEscaper   = strings.NewReplacer(",", "|", `"`, "&")
	metaUnescaper = strings.NewReplacer("|", ",", "&", `"`)
)

func EscapeMetadata(s string) string {
	return metaEscaper.Replace(s)
}

func UnescapeMetadata(s string) string {
	return metaUnescaper.Replace(s)
}

// 严格解析分隔的浮点数列表，空项被忽略
func ParseFloats(s, sep string) (ret []float64, err error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	if s == "" {
		return
	}
	parts := strings.Split(s, sep)
	ret = make([]float64, 0, len(parts))
	var v float64
	for _, p := range parts {
		if p == "" {
			continue
		}
		if v, err = strconv.ParseFloat(p, 64); err != nil {
			return nil, err
		}
		ret = append(ret, v)
	}
	return
}

func FormatFloats(vs []float64, sep string) string {
	var ret strings.Builder
	for i, v := range vs {
		if i > 0 {
			ret.WriteString(sep)
		}
		ret.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
	}
	return ret.String()
}

func StrToInt(s string) int {
	if s == "" {
		return 0
	}
	i, _ := strconv.Atoi(s)
	return i
}

// 去掉名称末尾至多n个数字
func StripTrailingDigits(name string, n int) string {
	for i := 0; i < n && len(name) > 0; i++ {
		c := name[len(name)-1]
		if c < '0' || c > '9' {
			break
		}
		name = name[:len(name)-1]
	}
	return name
}

func SortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func CloneMap(in map[string]string) map[string]string {
	if in == nil {
		return map[string]string{}
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// 将元数据值按给定编码转为UTF-8，已是合法UTF-8的串原样返回
func DecodeMetadata(s, enc string) (d string, err error) {
	if utf8.ValidString(s) {
		return s, nil
	}
	var e encoding.Encoding
	switch strings.ToLower(enc) {
	case ENC_GBK:
		e = simplifiedchinese.GBK
	case ENC_LATIN1:
		e = charmap.ISO8859_1
	default:
		return PurifyForUtf8(s), nil
	}
	reader := transform.NewReader(bytes.NewReader([]byte(s)), e.NewDecoder())
	t, err := io.ReadAll(reader)
	if err != nil {
		return
	}
	d = string(t)
	return
}

func PurifyForUtf8(s string) string {
	return strings.ToValidUTF8(strings.ReplaceAll(s, "\x00", ""), "")
}
