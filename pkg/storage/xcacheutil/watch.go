package xcacheutil

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/omeyang/xtier/pkg/observability/xlog"
)

// DefaultDebounce 默认防抖时间。
const DefaultDebounce = 100 * time.Millisecond

// ReloadCallback 在每次重载后调用，err 表示读取或应用配置是否成功。
type ReloadCallback func(cfg FileConfig, err error)

// WatchOption 监视器配置选项。
type WatchOption func(*watchOptions)

type watchOptions struct {
	debounce time.Duration
	callback ReloadCallback
}

// WithDebounce 设置防抖时间，在该时间内的多次变更只触发一次重载。
func WithDebounce(d time.Duration) WatchOption {
	return func(o *watchOptions) {
		if d > 0 {
			o.debounce = d
		}
	}
}

// WithReloadCallback 设置重载回调。
func WithReloadCallback(fn ReloadCallback) WatchOption {
	return func(o *watchOptions) {
		o.callback = fn
	}
}

// Watcher 监视配置文件并把变更应用到 Factory。
type Watcher struct {
	path     string
	factory  *Factory
	watcher  *fsnotify.Watcher
	debounce time.Duration
	callback ReloadCallback

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	running bool
	timer   *time.Timer
}

// Watch 创建配置文件监视器。创建时不读取文件；通常先用 [LoadConfig] 和
// [Factory.Apply] 完成初始加载，再调用 Start 或 StartAsync 开始监视。
//
// 监视的是文件所在目录而非文件本身：编辑器保存时常见的"写临时文件再 rename"
// 会让直接监视文件的 watcher 丢失后续事件。
func Watch(path string, f *Factory, opts ...WatchOption) (*Watcher, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	if f == nil {
		return nil, ErrNilFactory
	}
	if _, err := detectFormat(path); err != nil {
		return nil, err
	}

	o := &watchOptions{debounce: DefaultDebounce}
	for _, opt := range opts {
		if opt == nil {
			return nil, ErrNilOption
		}
		opt(o)
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("xcacheutil: failed to create watcher: %w", err)
	}
	dir := filepath.Dir(path)
	if err := fsWatcher.Add(dir); err != nil {
		closeErr := fsWatcher.Close()
		return nil, errors.Join(
			fmt.Errorf("xcacheutil: failed to watch directory %s: %w", dir, err),
			closeErr,
		)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		path:     path,
		factory:  f,
		watcher:  fsWatcher,
		debounce: o.debounce,
		callback: o.callback,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}, nil
}

// Start 启动监视并阻塞，直到 Stop 被调用。
func (w *Watcher) Start() {
	if !w.markRunning() {
		return
	}
	w.run()
}

// StartAsync 在后台 goroutine 中启动监视，立即返回。
func (w *Watcher) StartAsync() {
	if !w.markRunning() {
		return
	}
	go w.run()
}

func (w *Watcher) markRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running || w.ctx.Err() != nil {
		return false
	}
	w.running = true
	return true
}

// Stop 停止监视并等待监视循环退出。重复调用是安全的。
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.ctx.Err() != nil {
		w.mu.Unlock()
		return nil
	}
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.cancel()
	running := w.running
	w.running = false
	w.mu.Unlock()

	err := w.watcher.Close()
	if running {
		<-w.done
	}
	return err
}

func (w *Watcher) run() {
	defer close(w.done)
	filename := filepath.Base(w.path)

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event, filename)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.report(FileConfig{}, fmt.Errorf("xcacheutil: watch error: %w", err))
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event, filename string) {
	if filepath.Base(event.Name) != filename {
		return
	}
	// Write 直接修改；Create 部分编辑器新建文件；Rename 原子写入模式
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

// Reload 立即读取配置文件并应用到 Factory。
func (w *Watcher) Reload() (FileConfig, error) {
	cfg, err := LoadConfig(w.path)
	if err != nil {
		return FileConfig{}, err
	}
	return cfg, w.factory.Apply(cfg)
}

func (w *Watcher) reload() {
	if w.ctx.Err() != nil {
		return
	}
	cfg, err := w.Reload()
	w.report(cfg, err)
}

func (w *Watcher) report(cfg FileConfig, err error) {
	if err != nil {
		w.factory.logger.Warn(w.ctx, "xcacheutil: config reload failed", xlog.Err(err))
	} else {
		w.factory.logger.Info(w.ctx, "xcacheutil: config reloaded",
			xlog.Count(len(cfg.Caches)))
	}
	if w.callback != nil {
		w.callback(cfg, err)
	}
}
