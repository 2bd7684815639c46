package xcacheutil

import "errors"

var (
	// ErrEmptyName 表示缓存名称为空。
	ErrEmptyName = errors.New("xcacheutil: empty cache name")

	// ErrClosed 表示 Factory 已关闭，不能再创建缓存。
	ErrClosed = errors.New("xcacheutil: factory closed")

	// ErrNilFactory 表示传入了 nil 的 Factory。
	ErrNilFactory = errors.New("xcacheutil: nil factory")

	// ErrNilOption 表示传入了 nil 的选项。
	ErrNilOption = errors.New("xcacheutil: nil option")

	// ErrInvalidSchedule 表示失效计划不是合法的 cron 表达式。
	ErrInvalidSchedule = errors.New("xcacheutil: invalid invalidation schedule")
)

// 配置文件加载和解析相关错误。
var (
	// ErrEmptyPath 表示配置文件路径为空。
	ErrEmptyPath = errors.New("xcacheutil: empty config path")

	// ErrUnsupportedFormat 表示不支持的配置格式。
	ErrUnsupportedFormat = errors.New("xcacheutil: unsupported config format")

	// ErrLoadFailed 表示配置文件读取失败。
	ErrLoadFailed = errors.New("xcacheutil: failed to load config")

	// ErrParseFailed 表示配置解析失败。
	ErrParseFailed = errors.New("xcacheutil: failed to parse config")

	// ErrUnmarshalFailed 表示配置反序列化失败。
	ErrUnmarshalFailed = errors.New("xcacheutil: failed to unmarshal config")
)
