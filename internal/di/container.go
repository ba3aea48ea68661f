// Package di wires auth-relay's services with samber/do v2.
//
// Every service is a lazy singleton built on first Invoke. Shutdown tears
// them down in reverse construction order, so the HTTP server drains
// before the engine, limiter and config watcher it depends on go away.
package di

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/do/v2"
)

// ConfigPathKey is the named key for the config path string.
const ConfigPathKey = "config.path"

// ErrConfigPathRequired is returned by NewContainer for an empty path.
var ErrConfigPathRequired = errors.New("di: config path is required")

// Container owns the relay's service graph.
type Container struct {
	injector *do.RootScope
}

// NewContainer registers every relay service against the config file at
// configPath. Nothing is constructed until the first Invoke.
func NewContainer(configPath string) (*Container, error) {
	if configPath == "" {
		return nil, ErrConfigPathRequired
	}

	injector := do.New()
	do.ProvideNamedValue(injector, ConfigPathKey, configPath)
	RegisterSingletons(injector)

	return &Container{injector: injector}, nil
}

// Injector exposes the root scope.
func (c *Container) Injector() *do.RootScope {
	return c.injector
}

// Invoke resolves a service from the container.
func Invoke[T any](c *Container) (T, error) {
	return do.Invoke[T](c.injector)
}

// MustInvoke panics when T cannot be built. Startup only.
func MustInvoke[T any](c *Container) T {
	return do.MustInvoke[T](c.injector)
}

// InvokeNamed resolves a named value such as ConfigPathKey.
func InvokeNamed[T any](c *Container, name string) (T, error) {
	return do.InvokeNamed[T](c.injector, name)
}

// Shutdown stops every constructed service.
func (c *Container) Shutdown() error {
	return shutdownError(c.injector.Shutdown())
}

// ShutdownWithContext is Shutdown bounded by ctx. Services still stopping
// when ctx ends keep running in the background.
func (c *Container) ShutdownWithContext(ctx context.Context) error {
	done := make(chan *do.ShutdownReport, 1)
	go func() {
		done <- c.injector.ShutdownWithContext(ctx)
	}()

	select {
	case report := <-done:
		return shutdownError(report)
	case <-ctx.Done():
		return fmt.Errorf("di: shutdown timed out: %w", ctx.Err())
	}
}

func shutdownError(report *do.ShutdownReport) error {
	if report == nil || report.Succeed {
		return nil
	}
	return fmt.Errorf("di: shutdown failed: %s", report.Error())
}

// healthChecks lists the services built before the listener starts, in
// dependency order, so the first failure names the root cause.
var healthChecks = []struct {
	resolve func(do.Injector) error
	name    string
}{
	{name: "config", resolve: resolve[*ConfigService]},
	{name: "engine", resolve: resolve[*EngineService]},
	{name: "bridge", resolve: resolve[*BridgeService]},
	{name: "server", resolve: resolve[*ServerService]},
}

func resolve[T any](i do.Injector) error {
	_, err := do.Invoke[T](i)
	return err
}

// HealthCheck builds the serving graph and reports the first service that
// fails to construct.
func (c *Container) HealthCheck() error {
	for _, check := range healthChecks {
		if err := check.resolve(c.injector); err != nil {
			return fmt.Errorf("%s service unhealthy: %w", check.name, err)
		}
	}
	return nil
}
