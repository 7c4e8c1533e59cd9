package service

import (
	"strings"
	"unicode/utf8"
)

// MaxNameLength 是显示名的最大字符数（按 rune 计）。
const MaxNameLength = 32

// ResolveName 去除首尾空白并截断到 MaxNameLength；
// 为空时根据连接 ID 生成确定的默认名 "Player-XXXX"。
func ResolveName(name, connectionID string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultName(connectionID)
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		name = strings.TrimSpace(string([]rune(name)[:MaxNameLength]))
	}
	return name
}

// DefaultName 取连接 ID 的前 4 个字符作为后缀。
func DefaultName(connectionID string) string {
	suffix := []rune(connectionID)
	if len(suffix) > 4 {
		suffix = suffix[:4]
	}
	return "Player-" + strings.ToUpper(string(suffix))
}
