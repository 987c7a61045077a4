package config

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// SyncConfig tunes the background ledger resync sweep.
type SyncConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Interval  time.Duration `mapstructure:"interval"`
	BatchSize int           `mapstructure:"batchSize"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		Enabled:   true,
		Interval:  5 * time.Minute,
		BatchSize: 50,
		Timeout:   2 * time.Minute,
	}
}

type SyncConfigHolder struct {
	current atomic.Value // holds SyncConfig
}

// NewStaticSyncConfigHolder returns a holder that never reloads.
func NewStaticSyncConfigHolder(cfg SyncConfig) *SyncConfigHolder {
	holder := &SyncConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewSyncConfigHolder(log *zap.Logger) (*SyncConfigHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("sync.config")

	v := viper.New()

	v.SetConfigName("sync")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/repuestos")
	v.AddConfigPath(".")

	v.SetEnvPrefix("REPUESTOS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultSyncConfig()
	v.SetDefault("sync.enabled", defaults.Enabled)
	v.SetDefault("sync.interval", defaults.Interval)
	v.SetDefault("sync.batchSize", defaults.BatchSize)
	v.SetDefault("sync.timeout", defaults.Timeout)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileLoaded = false
	}

	var cfg SyncConfig
	if err := v.UnmarshalKey("sync", &cfg); err != nil {
		return nil, err
	}
	if err := validateSyncConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticSyncConfigHolder(cfg)
	if !fileLoaded {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated SyncConfig
		if err := v.UnmarshalKey("sync", &updated); err != nil {
			log.Warn("sync config reload failed", zap.Error(err))
			return
		}
		if err := validateSyncConfig(updated); err != nil {
			log.Warn("invalid sync config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("sync config reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *SyncConfigHolder) Get() SyncConfig {
	return h.current.Load().(SyncConfig)
}

func validateSyncConfig(cfg SyncConfig) error {
	if cfg.Interval <= 0 {
		return errors.New("sync.interval must be positive")
	}
	if cfg.BatchSize <= 0 {
		return errors.New("sync.batchSize must be positive")
	}
	if cfg.Timeout <= 0 {
		return errors.New("sync.timeout must be positive")
	}
	return nil
}
