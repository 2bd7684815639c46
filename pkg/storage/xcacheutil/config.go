package xcacheutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// Format 配置文件格式。
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// keyDelim koanf 的路径分隔符。缓存名常带点号（如 "user.search"），不能用默认的 "."。
const keyDelim = "::"

const configTag = "koanf"

// FileConfig 描述一组具名缓存。
//
//	invalidate_schedule: "@every 1h"
//	log:
//	  level: info
//	  format: json
//	caches:
//	  user.search:
//	    initial_size: 1000
//	    capacity_limit: 4000
//	    timeout: 20m
type FileConfig struct {
	// Caches 缓存名到配置的映射。
	Caches map[string]CacheConfig `koanf:"caches"`

	// InvalidateSchedule 定期清空全部缓存的 cron 表达式，空表示不启用。
	InvalidateSchedule string `koanf:"invalidate_schedule"`

	// Log 日志配置，由命令行工具使用。
	Log LogConfig `koanf:"log"`
}

// CacheConfig 单个缓存的配置。
type CacheConfig struct {
	InitialSize   int           `koanf:"initial_size"`
	CapacityLimit int           `koanf:"capacity_limit"`
	Timeout       time.Duration `koanf:"timeout"`
}

// LogConfig 日志配置。
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Validate 校验配置。
func (c FileConfig) Validate() error {
	for name := range c.Caches {
		if strings.TrimSpace(name) == "" {
			return ErrEmptyName
		}
	}
	if c.InvalidateSchedule != "" {
		if _, err := scheduleParser.Parse(c.InvalidateSchedule); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidSchedule, err)
		}
	}
	return nil
}

// LoadConfig 读取并解析配置文件，根据扩展名（.yaml/.yml/.json）选择格式。
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, ErrEmptyPath
	}
	format, err := detectFormat(path)
	if err != nil {
		return FileConfig{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}
	return ParseConfig(data, format)
}

// ParseConfig 解析配置数据。空数据得到空配置。
func ParseConfig(data []byte, format Format) (FileConfig, error) {
	parser, err := parserFor(format)
	if err != nil {
		return FileConfig{}, err
	}

	var cfg FileConfig
	k := koanf.New(keyDelim)
	if len(data) > 0 {
		if err := k.Load(rawbytes.Provider(data), parser); err != nil {
			return FileConfig{}, fmt.Errorf("%w: %w", ErrParseFailed, err)
		}
	}
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: configTag}); err != nil {
		return FileConfig{}, fmt.Errorf("%w: %w", ErrUnmarshalFailed, err)
	}
	if err := cfg.Validate(); err != nil {
		return FileConfig{}, err
	}
	return cfg, nil
}

// detectFormat 根据文件扩展名检测配置格式。
func detectFormat(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: unknown extension %s", ErrUnsupportedFormat, ext)
	}
}

func parserFor(format Format) (koanf.Parser, error) {
	switch format {
	case FormatYAML:
		return yaml.Parser(), nil
	case FormatJSON:
		return json.Parser(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}
