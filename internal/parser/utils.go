package parser

import (
	"regexp"
	"strings"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// NormalizeLabel 规范化行标签：去首尾空白、转小写、压缩连续空白
func NormalizeLabel(label string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return ""
	}
	label = whitespaceRe.ReplaceAllString(label, " ")
	return strings.ToLower(label)
}

// ContainsAny 检查字符串是否包含任意一个关键词
func ContainsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// FindColumn 在表头中查找列，忽略大小写
// 先按候选顺序精确匹配，再按候选顺序做子串匹配；未找到返回 -1
func FindColumn(headers []string, candidates []string) int {
	normalized := make([]string, len(headers))
	for i, h := range headers {
		normalized[i] = NormalizeLabel(h)
	}

	for _, cand := range candidates {
		want := NormalizeLabel(cand)
		if want == "" {
			continue
		}
		for i, h := range normalized {
			if h == want {
				return i
			}
		}
	}

	for _, cand := range candidates {
		want := NormalizeLabel(cand)
		if want == "" {
			continue
		}
		for i, h := range normalized {
			if h != "" && strings.Contains(h, want) {
				return i
			}
		}
	}

	return -1
}
