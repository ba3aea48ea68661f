package di

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/samber/do/v2"

	"github.com/omarluq/auth-relay/internal/config"
	"github.com/omarluq/auth-relay/internal/logging"
)

// ConfigService holds the live configuration with hot-reload support.
// Reads go through an atomic pointer so in-flight requests keep their
// snapshot while new requests see the reloaded file.
type ConfigService struct {
	*config.Runtime
	watcher   *config.Watcher
	path      string
	callbacks []config.ReloadCallback
	mu        sync.Mutex
}

// NewConfig loads and validates the configuration and creates a watcher.
// The watcher is created but not started; call StartWatching after the
// container is initialized.
func NewConfig(i do.Injector) (*ConfigService, error) {
	path := do.MustInvokeNamed[string](i, ConfigPathKey)

	cfg, err := config.LoadAndValidate(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}

	svc := NewConfigServiceWith(cfg)
	svc.path = path

	// Hot reload is optional; a watcher failure only disables it.
	watcher, err := config.NewWatcher(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("config watcher creation failed, hot-reload disabled")
	} else {
		svc.watcher = watcher
	}

	return svc, nil
}

// NewConfigServiceWith wraps cfg without a backing file or watcher.
func NewConfigServiceWith(cfg *config.Config) *ConfigService {
	return &ConfigService{Runtime: config.NewRuntime(cfg)}
}

// OnReload registers cb to run after each accepted reload, once the new
// config has been stored.
func (c *ConfigService) OnReload(cb config.ReloadCallback) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callbacks = append(c.callbacks, cb)
}

// Apply stores cfg and runs the reload callbacks.
func (c *ConfigService) Apply(cfg *config.Config) error {
	c.Store(cfg)

	c.mu.Lock()
	callbacks := append([]config.ReloadCallback(nil), c.callbacks...)
	c.mu.Unlock()

	for _, cb := range callbacks {
		if err := cb(cfg); err != nil {
			log.Error().Err(err).Msg("config reload callback failed")
		}
	}
	return nil
}

// StartWatching begins watching the config file until ctx is done.
func (c *ConfigService) StartWatching(ctx context.Context) {
	if c.watcher == nil {
		return
	}

	c.watcher.OnReload(c.Apply)

	go func() {
		if err := c.watcher.Watch(ctx); err != nil {
			log.Error().Err(err).Msg("config watcher error")
		}
	}()

	log.Info().Str("path", c.path).Msg("config file watcher started")
}

// SetWatcherLogger routes watcher logs through logger.
func (c *ConfigService) SetWatcherLogger(logger *logging.Logger) {
	if c.watcher != nil {
		c.watcher.SetLogger(logger)
	}
}

// Path returns the config file path, or "" when built from a value.
func (c *ConfigService) Path() string {
	return c.path
}

// Shutdown implements do.Shutdowner.
func (c *ConfigService) Shutdown() error {
	if c.watcher != nil {
		return c.watcher.Close()
	}
	return nil
}
