package parser

import (
	"math"
	"strconv"
	"strings"
)

// ParseValue 将单元格原始值解析为数值
// 支持: 数值类型 / "1,234.5" / "(1,234)" 负数 / "12.5%" 百分比
// 空值或无法解析时返回 ok=false，不返回错误
func ParseValue(v any) (float64, bool) {
	switch x := v.(type) {
	case nil:
		return 0, false
	case float64:
		return finite(x)
	case float32:
		return finite(float64(x))
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case string:
		return parseText(x)
	case []byte:
		return parseText(string(x))
	default:
		return 0, false
	}
}

// ParseNumberOrZero 解析失败时返回 0
func ParseNumberOrZero(v any) float64 {
	f, ok := ParseValue(v)
	if !ok {
		return 0
	}
	return f
}

func parseText(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	negative := false
	if len(s) >= 2 && strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	scale := 1.0
	if strings.HasSuffix(s, "%") {
		s = strings.TrimSuffix(s, "%")
		scale = 0.01
	}

	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return 0, false
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if _, ok := finite(f); !ok {
		return 0, false
	}

	f *= scale
	if negative {
		f = -f
	}
	return f, true
}

func finite(f float64) (float64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
