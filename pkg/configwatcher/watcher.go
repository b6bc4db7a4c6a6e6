package configwatcher

import (
	"chat_relation_backend/internal/config"
	"chat_relation_backend/pkg/logger"
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

type ConfigReloader func(cfg *config.Config)

// Watcher 监听配置文件所在目录，文件被写入或替换后重新加载
type Watcher struct {
	watcher  *fsnotify.Watcher
	path     string
	debounce time.Duration
}

func New(configPath string) (*Watcher, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// 监听目录而不是文件，编辑器保存时常常是重命名替换
	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		watcher.Close()
		return nil, err
	}
	return &Watcher{watcher: watcher, path: absPath, debounce: time.Second}, nil
}

// Run blocks until ctx is done. Bursts of events within the debounce window
// produce a single reload.
func (w *Watcher) Run(ctx context.Context, reloader ConfigReloader) {
	defer w.watcher.Close()

	var reload <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				// 防抖处理
				reload = time.After(w.debounce)
			}
		case <-reload:
			reload = nil
			newCfg, err := config.LoadConfig(filepath.Dir(w.path))
			if err != nil {
				logger.Log.Error("Failed to reload config", zap.Error(err))
				continue
			}
			logger.Log.Info("Config reloaded", zap.String("path", w.path))
			reloader(newCfg)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Log.Error("Config watcher error", zap.Error(err))
		}
	}
}
