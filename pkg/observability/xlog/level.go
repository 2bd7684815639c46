package xlog

import (
	"fmt"
	"log/slog"
	"strings"
)

// Level 是日志级别。数值与 slog.Level 一致，可以直接互相转换。
type Level slog.Level

const (
	LevelDebug = Level(slog.LevelDebug)
	LevelInfo  = Level(slog.LevelInfo)
	LevelWarn  = Level(slog.LevelWarn)
	LevelError = Level(slog.LevelError)
)

// levelNames 是配置文件和命令行 --log-level 接受的级别名，key 均为小写。
// 空串对应未配置的情况。
var levelNames = map[string]Level{
	"":        LevelInfo,
	"debug":   LevelDebug,
	"info":    LevelInfo,
	"warn":    LevelWarn,
	"warning": LevelWarn,
	"error":   LevelError,
}

// String 返回大写级别名。介于两档之间的级别按 slog 的写法输出，例如 "INFO+2"。
func (l Level) String() string {
	return slog.Level(l).String()
}

// MarshalText 输出 [Level.String] 的结果，使 Level 可以写回配置。
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText 解析配置中的级别名。失败时不修改 l。
func (l *Level) UnmarshalText(data []byte) error {
	parsed, err := ParseLevel(string(data))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ParseLevel 解析级别名，忽略大小写和首尾空白。
// 不认识的名称返回 LevelInfo 与包裹了 [ErrUnknownLevel] 的错误。
func ParseLevel(s string) (Level, error) {
	if level, ok := levelNames[strings.ToLower(strings.TrimSpace(s))]; ok {
		return level, nil
	}
	return LevelInfo, fmt.Errorf("%w %q", ErrUnknownLevel, s)
}
