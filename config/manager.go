package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jonwraymond/querycache/invalidation"
	"github.com/jonwraymond/querycache/observe"
)

// ChangeFunc receives the previous and current settings after a reload.
type ChangeFunc func(old, cur *Settings)

// Manager holds the current settings and reloads them when the file
// changes. Reloads that fail to parse or validate are logged and ignored.
type Manager struct {
	path     string
	opts     []LoadOption
	logger   observe.Logger
	debounce time.Duration
	watcher  *fsnotify.Watcher

	mu        sync.RWMutex
	current   *Settings
	callbacks []ChangeFunc

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the reload logger.
func WithLogger(l observe.Logger) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithDebounce sets how long writes must settle before a reload.
// Default: 100ms
func WithDebounce(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.debounce = d
		}
	}
}

// WithLoadOptions passes opts to every Load.
func WithLoadOptions(opts ...LoadOption) ManagerOption {
	return func(m *Manager) { m.opts = append(m.opts, opts...) }
}

// NewManager loads path and starts watching its directory.
func NewManager(ctx context.Context, path string, opts ...ManagerOption) (*Manager, error) {
	m := &Manager{
		path:     filepath.Clean(path),
		logger:   observe.NopLogger(),
		debounce: 100 * time.Millisecond,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	s, err := Load(ctx, m.path, m.opts...)
	if err != nil {
		return nil, err
	}
	m.current = s

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(m.path)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("config: watch %s: %w", m.path, err)
	}
	m.watcher = watcher

	go m.watch()
	return m, nil
}

// Get returns the current settings. Callers must not modify them.
func (m *Manager) Get() *Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// OnChange registers fn. Callbacks run on the watcher goroutine in
// registration order.
func (m *Manager) OnChange(fn ChangeFunc) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	m.callbacks = append(m.callbacks, fn)
	m.mu.Unlock()
}

// PublishChanges publishes invalidation.SettingsChanged on bus after every
// successful reload, so cached responses built under the old settings are
// dropped.
func (m *Manager) PublishChanges(bus *invalidation.Bus) {
	m.OnChange(func(_, _ *Settings) {
		bus.Publish(context.Background(), invalidation.SettingsChanged{})
	})
}

// Reload loads the file now and notifies callbacks on success.
func (m *Manager) Reload(ctx context.Context) error {
	s, err := Load(ctx, m.path, m.opts...)
	if err != nil {
		m.logger.Warn(ctx, "config reload failed", observe.F("path", m.path), observe.F("error", err))
		return err
	}

	m.mu.Lock()
	old := m.current
	m.current = s
	callbacks := append([]ChangeFunc(nil), m.callbacks...)
	m.mu.Unlock()

	m.logger.Info(ctx, "config reloaded", observe.F("path", m.path))
	for _, fn := range callbacks {
		fn(old, s)
	}
	return nil
}

// Close stops watching. It is safe to call more than once.
func (m *Manager) Close() error {
	var err error
	m.closeOnce.Do(func() {
		close(m.stop)
		err = m.watcher.Close()
		<-m.done
	})
	return err
}

func (m *Manager) watch() {
	defer close(m.done)

	debounce := time.NewTimer(time.Hour)
	debounce.Stop()
	defer debounce.Stop()

	for {
		select {
		case <-m.stop:
			return
		case ev, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != m.path {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				debounce.Reset(m.debounce)
			}
		case <-debounce.C:
			_ = m.Reload(context.Background())
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			m.logger.Warn(context.Background(), "config watcher error", observe.F("error", err))
		}
	}
}
