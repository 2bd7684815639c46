package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"math/rand/v2"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/omeyang/xtier/pkg/observability/xlog"
	"github.com/omeyang/xtier/pkg/storage/xcacheutil"
	"github.com/omeyang/xtier/pkg/storage/xtier"
)

// exitError 表示需要非零退出码但已完成输出的场景。
type exitError struct {
	code int
}

func (e *exitError) Error() string { return "exit status " + strconv.Itoa(e.code) }

// usageError 表示参数错误，退出码为 2。
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

// 创建所有子命令。
func createCommands() []*cli.Command {
	return []*cli.Command{
		createBenchCommand(),
		createValidateCommand(),
		createWatchCommand(),
	}
}

// =============================================================================
// bench
// =============================================================================

type benchOptions struct {
	workers   int
	ops       int
	keys      int
	capacity  int
	period    time.Duration
	readRatio float64
	shards    int
}

func (o benchOptions) validate() error {
	switch {
	case o.workers < 1:
		return usagef("--workers 必须大于 0")
	case o.ops < 1:
		return usagef("--ops 必须大于 0")
	case o.keys < 0:
		return usagef("--keys 不能为负数")
	case o.readRatio < 0 || o.readRatio > 1:
		return usagef("--read-ratio 必须在 [0, 1] 范围内")
	}
	return nil
}

func createBenchCommand() *cli.Command {
	return &cli.Command{
		Name:  "bench",
		Usage: "对分代缓存施加并发读写负载并输出统计",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "workers", Aliases: []string{"w"}, Usage: "并发 worker 数", Value: 8},
			&cli.IntFlag{Name: "ops", Aliases: []string{"n"}, Usage: "总操作数", Value: 100000},
			&cli.IntFlag{Name: "keys", Aliases: []string{"k"}, Usage: "key 空间大小，0 表示每次使用随机 UUID", Value: 10000},
			&cli.IntFlag{Name: "capacity", Aliases: []string{"c"}, Usage: "容量上限，0 表示不限制", Value: 5000},
			&cli.DurationFlag{Name: "period", Aliases: []string{"p"}, Usage: "代际周期，0 表示不启用定时轮转"},
			&cli.FloatFlag{Name: "read-ratio", Aliases: []string{"r"}, Usage: "读操作比例", Value: 0.8},
			&cli.IntFlag{Name: "shards", Usage: "每张代际表的分片数，0 表示默认值"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			logger, cleanup, err := newLogger(cmd, xcacheutil.LogConfig{})
			if err != nil {
				return err
			}
			defer func() { _ = cleanup() }()

			return cmdBench(ctx, cmd.Root().Writer, logger, benchOptions{
				workers:   cmd.Int("workers"),
				ops:       cmd.Int("ops"),
				keys:      cmd.Int("keys"),
				capacity:  cmd.Int("capacity"),
				period:    cmd.Duration("period"),
				readRatio: cmd.Float("read-ratio"),
				shards:    cmd.Int("shards"),
			})
		},
	}
}

// cmdBench 执行负载：读操作经 Loader 回源（未命中时由合成后端生成值），写操作使用 Insert。
func cmdBench(ctx context.Context, w io.Writer, logger xlog.Logger, o benchOptions) error {
	if err := o.validate(); err != nil {
		return err
	}

	cache, err := xtier.New[int](xtier.Config{
		InitialSize:   o.capacity / 3,
		CapacityLimit: o.capacity,
		Period:        o.period,
	}, xtier.WithName("bench"), xtier.WithLogger(logger), xtier.WithShards(o.shards))
	if err != nil {
		return err
	}
	defer func() { _ = cache.Close() }()

	loader, err := xtier.NewLoader(cache, func(_ context.Context, key string) (int, error) {
		return len(key), nil
	})
	if err != nil {
		return err
	}

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	per, rem := o.ops/o.workers, o.ops%o.workers
	for id := range o.workers {
		n := per
		if id < rem {
			n++
		}
		g.Go(func() error {
			rng := rand.New(rand.NewPCG(uint64(id), uint64(start.UnixNano())))
			for i := range n {
				if i&1023 == 0 && gctx.Err() != nil {
					return gctx.Err()
				}
				key := benchKey(rng, o.keys)
				if rng.Float64() < o.readRatio {
					if _, err := loader.Load(gctx, key); err != nil {
						return err
					}
					continue
				}
				if _, _, err := cache.Insert(key, i); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("负载执行中断: %w", err)
	}
	elapsed := time.Since(start)

	printBenchReport(w, o, elapsed, cache.Stats())
	return nil
}

func benchKey(rng *rand.Rand, keys int) string {
	if keys == 0 {
		return uuid.NewString()
	}
	return "key-" + strconv.Itoa(rng.IntN(keys))
}

func printBenchReport(w io.Writer, o benchOptions, elapsed time.Duration, st xtier.Stats) {
	throughput := float64(o.ops) / max(elapsed.Seconds(), 1e-9)
	fmt.Fprintf(w, "操作数:   %d (workers=%d, read-ratio=%.2f)\n", o.ops, o.workers, o.readRatio)
	fmt.Fprintf(w, "耗时:     %s\n", elapsed.Round(time.Microsecond))
	fmt.Fprintf(w, "吞吐:     %.0f ops/s\n", throughput)
	printStats(w, st)
}

func printStats(w io.Writer, st xtier.Stats) {
	fmt.Fprintf(w, "命中率:   %.2f%% (hits=%d, misses=%d)\n", st.HitRatio()*100, st.Hits, st.Misses)
	fmt.Fprintf(w, "写入:     inserts=%d updates=%d removes=%d reservations=%d\n",
		st.Inserts, st.Updates, st.Removes, st.Reservations)
	fmt.Fprintf(w, "轮转:     rotations=%d evicted=%d\n", st.Rotations, st.Evicted)
	fmt.Fprintf(w, "当前:     size=%d occupancy=%d\n", st.Size, st.Occupancy)
}

// =============================================================================
// validate
// =============================================================================

func createValidateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "解析缓存配置文件并打印结果",
		ArgsUsage: "<file>",
		Action: func(_ context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return usagef("validate 需要且只需要一个配置文件参数")
			}
			return cmdValidate(cmd.Root().Writer, cmd.Args().First())
		},
	}
}

func cmdValidate(w io.Writer, path string) error {
	cfg, err := xcacheutil.LoadConfig(path)
	if err != nil {
		fmt.Fprintf(w, "配置无效: %v\n", err)
		return &exitError{code: 1}
	}
	fmt.Fprintf(w, "配置有效: %s\n", path)
	printConfig(w, cfg)
	return nil
}

func printConfig(w io.Writer, cfg xcacheutil.FileConfig) {
	schedule := cfg.InvalidateSchedule
	if schedule == "" {
		schedule = "未启用"
	}
	fmt.Fprintf(w, "失效计划: %s\n", schedule)
	fmt.Fprintf(w, "缓存数:   %d\n", len(cfg.Caches))
	for _, name := range slices.Sorted(maps.Keys(cfg.Caches)) {
		cc := cfg.Caches[name]
		fmt.Fprintf(w, "  %s: initial_size=%d capacity_limit=%d timeout=%s\n",
			name, cc.InitialSize, cc.CapacityLimit, cc.Timeout)
	}
}

// =============================================================================
// watch
// =============================================================================

func createWatchCommand() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "按配置文件创建缓存并热更新，直到收到中断信号",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.DurationFlag{Name: "debounce", Usage: "配置变更防抖时间", Value: xcacheutil.DefaultDebounce},
			&cli.DurationFlag{Name: "stats-interval", Usage: "打印统计的间隔，0 表示只在退出时打印"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return usagef("watch 需要且只需要一个配置文件参数")
			}
			return cmdWatch(ctx, cmd, cmd.Args().First())
		},
	}
}

func cmdWatch(ctx context.Context, cmd *cli.Command, path string) error {
	w := cmd.Root().Writer

	cfg, err := xcacheutil.LoadConfig(path)
	if err != nil {
		return err
	}
	logger, cleanup, err := newLogger(cmd, cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = cleanup() }()

	f, err := xcacheutil.NewFactory(xcacheutil.WithLogger(logger))
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	if err := f.Apply(cfg); err != nil {
		return err
	}

	watcher, err := xcacheutil.Watch(path, f,
		xcacheutil.WithDebounce(cmd.Duration("debounce")),
		xcacheutil.WithReloadCallback(func(cfg xcacheutil.FileConfig, err error) {
			if err != nil {
				fmt.Fprintf(w, "重载失败: %v\n", err)
				return
			}
			fmt.Fprintf(w, "已重载: %d 个缓存\n", len(cfg.Caches))
		}))
	if err != nil {
		return err
	}
	watcher.StartAsync()
	fmt.Fprintf(w, "正在监视 %s (%d 个缓存)，按 Ctrl+C 退出\n", path, len(cfg.Caches))

	var tick <-chan time.Time
	if d := cmd.Duration("stats-interval"); d > 0 {
		t := time.NewTicker(d)
		defer t.Stop()
		tick = t.C
	}
	for done := false; !done; {
		select {
		case <-ctx.Done():
			done = true
		case <-tick:
			printFactoryStats(w, f)
		}
	}

	stopErr := watcher.Stop()
	printFactoryStats(w, f)
	return errors.Join(stopErr, f.Close())
}

func printFactoryStats(w io.Writer, f *xcacheutil.Factory) {
	for _, name := range f.Names() {
		a, ok := f.Lookup(name)
		if !ok {
			continue
		}
		fmt.Fprintf(w, "[%s]\n", name)
		printStats(w, a.Cache().Stats())
	}
}

// =============================================================================
// 辅助函数
// =============================================================================

// newLogger 按全局 flag 构建日志记录器。flag 未显式设置时使用配置文件中的值。
func newLogger(cmd *cli.Command, fallback xcacheutil.LogConfig) (xlog.LoggerWithLevel, func() error, error) {
	level := cmd.String("log-level")
	if !cmd.IsSet("log-level") && fallback.Level != "" {
		level = fallback.Level
	}
	format := cmd.String("log-format")
	if !cmd.IsSet("log-format") && fallback.Format != "" {
		format = fallback.Format
	}

	b := xlog.New().
		SetOutput(cmd.Root().ErrWriter).
		SetLevelString(level).
		SetFormat(format).
		SetAttrs(xlog.Component("xtierctl"))
	if file := cmd.String("log-file"); file != "" {
		b.SetRotation(file, xlog.RotationOptions{MaxSizeMB: 100, MaxBackups: 3, MaxAgeDays: 7})
	}
	logger, cleanup, err := b.Build()
	if err != nil {
		return nil, nil, &usageError{msg: err.Error()}
	}
	return logger, cleanup, nil
}
