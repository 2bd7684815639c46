// Package storage 提供进程内存储相关的子包。
//
// 子包列表：
//   - xtier: 三代近似 LRU 缓存，按容量或定时轮转淘汰
//   - xcacheutil: 平台缓存接口形状的适配层，具名缓存工厂与配置热更新
//
// 设计原则：
//   - 读路径无全局锁，写路径串行化
//   - 内置可观测性（OpenTelemetry 指标、结构化日志）
package storage
