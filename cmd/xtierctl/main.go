// xtierctl 是 xtier 分代缓存的命令行工具。
//
// 用法:
//
//	xtierctl [全局选项] <命令> [命令参数]
//
// 全局选项:
//
//	--log-level    日志级别 (debug/info/warn/error，默认: warn)
//	--log-format   日志格式 (text/json，默认: text)
//	--log-file     日志文件路径，设置后按大小轮转 (默认: 输出到 stderr)
//
// 命令:
//
//	bench          对分代缓存施加并发读写负载并输出统计
//	validate <f>   解析缓存配置文件并打印结果
//	watch <f>      按配置文件创建缓存并热更新，直到收到中断信号
//
// 退出码:
//
//	0: 命令执行成功
//	1: 命令执行失败（配置无法加载、负载执行出错等）
//	2: 参数错误（缺少必需参数、未知命令、无效 flag 值等）
//
// 示例:
//
//	xtierctl bench --workers 16 --ops 1000000 --capacity 5000
//	xtierctl bench --keys 0 --period 300ms         # 每次写入随机 key
//	xtierctl validate /etc/app/caches.yaml
//	xtierctl --log-level info watch /etc/app/caches.yaml
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"
)

// 版本信息（可通过 -ldflags 注入，例如:
//
//	go build -ldflags "-X main.Version=1.0.0 -X main.GitCommit=$(git rev-parse --short HEAD)"
//
// ）。
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupSignalHandler(cancel)

	os.Exit(run(ctx, os.Args, os.Stdout, os.Stderr))
}

// createApp 创建 CLI 应用。
func createApp(stdout, stderr io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "xtierctl",
		Usage:     "xtier 分代缓存命令行工具",
		Version:   fmt.Sprintf("%s (commit: %s)", Version, GitCommit),
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "日志级别 (debug/info/warn/error)",
				Value: "warn",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "日志格式 (text/json)",
				Value: "text",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "日志文件路径，设置后按大小轮转",
			},
		},
		Commands: createCommands(),
		// 设计决策: 禁止 urfave/cli 直接调用 os.Exit，
		// 由 run() 统一处理退出码映射，确保与文档退出码契约一致。
		ExitErrHandler: func(_ context.Context, _ *cli.Command, err error) {
			var ec cli.ExitCoder
			if errors.As(err, &ec) {
				fmt.Fprintln(stderr, err)
			}
		},
	}
}

// run 执行命令并返回退出码。
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	app := createApp(stdout, stderr)

	err := app.Run(ctx, args)
	if err == nil {
		return 0
	}

	var exitErr *exitError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}
	var usageErr *usageError
	if errors.As(err, &usageErr) {
		fmt.Fprintf(stderr, "参数错误: %v\n", usageErr)
		return 2
	}
	if isCLIUsageError(err) {
		// flag 解析器已向 stderr 输出错误详情，此处仅设置退出码
		return 2
	}
	fmt.Fprintf(stderr, "错误: %v\n", err)
	return 1
}

// isCLIUsageError 判断错误是否来自 CLI 框架的参数解析。
func isCLIUsageError(err error) bool {
	msg := err.Error()
	for _, marker := range []string{
		"flag provided but not defined",
		"invalid value",
		"No help topic for",
		"Required flag",
		"flag needs an argument",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
