package xcacheutil

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reloadRecorder struct {
	mu      sync.Mutex
	configs []FileConfig
	errs    []error
}

func (r *reloadRecorder) callback(cfg FileConfig, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs = append(r.configs, cfg)
	r.errs = append(r.errs, err)
}

func (r *reloadRecorder) last() (FileConfig, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.errs)
	if n == 0 {
		return FileConfig{}, 0, nil
	}
	return r.configs[n-1], n, r.errs[n-1]
}

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
}

func TestWatch_Errors(t *testing.T) {
	f := newTestFactory(t)
	dir := t.TempDir()

	_, err := Watch("", f)
	assert.ErrorIs(t, err, ErrEmptyPath)

	_, err = Watch(filepath.Join(dir, "c.yaml"), nil)
	assert.ErrorIs(t, err, ErrNilFactory)

	_, err = Watch(filepath.Join(dir, "c.txt"), f)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = Watch(filepath.Join(dir, "c.yaml"), f, nil)
	assert.ErrorIs(t, err, ErrNilOption)

	_, err = Watch(filepath.Join(dir, "missing", "c.yaml"), f)
	assert.Error(t, err)
}

func TestWatch_AppliesChanges(t *testing.T) {
	// Given
	f := newTestFactory(t)
	path := filepath.Join(t.TempDir(), "caches.yaml")
	writeFile(t, path, "caches:\n  users:\n    capacity_limit: 10\n")

	rec := &reloadRecorder{}
	w, err := Watch(path, f, WithDebounce(50*time.Millisecond), WithReloadCallback(rec.callback))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, w.Stop()) })

	_, err = w.Reload()
	require.NoError(t, err)
	require.Equal(t, []string{"users"}, f.Names())
	w.StartAsync()

	// When
	writeFile(t, path, "caches:\n  users:\n    capacity_limit: 20\n  groups: {}\n")

	// Then
	require.Eventually(t, func() bool {
		_, n, err := rec.last()
		return n > 0 && err == nil && len(f.Names()) == 2
	}, 2*time.Second, 10*time.Millisecond)
	users, ok := f.Lookup("users")
	require.True(t, ok)
	assert.Equal(t, 20, users.Cache().Config().CapacityLimit)
}

func TestWatch_ReportsInvalidConfig(t *testing.T) {
	f := newTestFactory(t)
	path := filepath.Join(t.TempDir(), "caches.yaml")
	writeFile(t, path, "caches:\n  users: {}\n")

	rec := &reloadRecorder{}
	w, err := Watch(path, f, WithDebounce(50*time.Millisecond), WithReloadCallback(rec.callback))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, w.Stop()) })
	_, err = w.Reload()
	require.NoError(t, err)
	w.StartAsync()

	writeFile(t, path, "caches: [")

	require.Eventually(t, func() bool {
		_, _, err := rec.last()
		return err != nil
	}, 2*time.Second, 10*time.Millisecond)
	_, _, err = rec.last()
	assert.ErrorIs(t, err, ErrParseFailed)
	assert.Equal(t, []string{"users"}, f.Names(), "failed reload keeps the previous caches")
}

func TestWatch_IgnoresOtherFiles(t *testing.T) {
	f := newTestFactory(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "caches.yaml")
	writeFile(t, path, "caches: {}\n")

	rec := &reloadRecorder{}
	w, err := Watch(path, f, WithDebounce(50*time.Millisecond), WithReloadCallback(rec.callback))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, w.Stop()) })
	w.StartAsync()

	writeFile(t, filepath.Join(dir, "other.yaml"), "caches:\n  x: {}\n")
	time.Sleep(200 * time.Millisecond)

	_, n, _ := rec.last()
	assert.Zero(t, n)
	assert.Empty(t, f.Names())
}

func TestWatch_StopIdempotent(t *testing.T) {
	f := newTestFactory(t)
	path := filepath.Join(t.TempDir(), "caches.yaml")
	writeFile(t, path, "caches: {}\n")

	w, err := Watch(path, f)
	require.NoError(t, err)
	w.StartAsync()
	w.StartAsync()

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())

	// 停止后不能再次启动
	w.StartAsync()
	w.Start()
}

func TestWatch_StopWithoutStart(t *testing.T) {
	f := newTestFactory(t)
	path := filepath.Join(t.TempDir(), "caches.yaml")

	w, err := Watch(path, f)
	require.NoError(t, err)
	require.NoError(t, w.Stop())
}
