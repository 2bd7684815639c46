package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// setupSignalHandler 设置信号处理。
// 设计决策: 第一次信号优雅取消（watch 正常退出并打印统计），
// 第二次信号强制退出（退出码 130 = 128 + SIGINT）。
func setupSignalHandler(cancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel() // 第一次信号: 优雅取消

		<-sigCh
		signal.Stop(sigCh)
		os.Exit(130) // 第二次信号: 强制退出
	}()
}
