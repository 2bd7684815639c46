package xlog

import "errors"

var (
	// ErrUnknownLevel 表示无法识别的日志级别字符串。
	ErrUnknownLevel = errors.New("xlog: unknown level")

	// ErrUnknownFormat 表示不支持的输出格式（仅支持 text/json）。
	ErrUnknownFormat = errors.New("xlog: unknown format")

	// ErrEmptyFilename 表示开启文件轮转时未指定文件名。
	ErrEmptyFilename = errors.New("xlog: empty rotation filename")
)
