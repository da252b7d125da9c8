package config

import (
	"os"
	"sync"

	apperrors "github.com/gmsas95/medremind/internal/errors"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Watcher reloads the config file when it changes on disk
type Watcher struct {
	configPath string
	dataDir    string
	logger     *zap.Logger
	onChange   func(*Config)

	mu      sync.Mutex
	stopped bool
}

// Watch calls onChange with the reloaded configuration after every write to
// configPath. Invalid edits are logged and the previous values stay active.
func Watch(configPath, dataDir string, logger *zap.Logger, onChange func(*Config)) (*Watcher, error) {
	if _, err := os.Stat(configPath); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrConfigNotFound.Code, "cannot watch config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	w := &Watcher{
		configPath: configPath,
		dataDir:    dataDir,
		logger:     logger,
		onChange:   onChange,
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.OnConfigChange(w.handle)
	v.WatchConfig()

	logger.Info("Watching config", zap.String("path", configPath))
	return w, nil
}

func (w *Watcher) handle(e fsnotify.Event) {
	if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}

	cfg, err := Load(w.configPath, w.dataDir)
	if err != nil {
		w.logger.Warn("Ignoring invalid config change", zap.String("path", e.Name), zap.Error(err))
		return
	}
	w.logger.Info("Config reloaded", zap.String("path", e.Name))
	w.onChange(cfg)
}

// Stop turns further change notifications into no-ops. viper keeps its
// watch goroutine for the life of the process.
func (w *Watcher) Stop() {
	w.mu.Lock()
	w.stopped = true
	w.mu.Unlock()
}
