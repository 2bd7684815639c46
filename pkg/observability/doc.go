// Package observability 提供可观测性相关的子包。
//
// 子包列表：
//   - xlog: 结构化日志，基于 log/slog 扩展，支持动态级别和文件轮转
//
// 指标由各组件直接通过 OpenTelemetry metric API 注册，默认使用全局 MeterProvider。
package observability
