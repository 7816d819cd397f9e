package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/km-arc/go-wiring/framework/config"
	"github.com/km-arc/go-wiring/framework/container"
	"github.com/km-arc/go-wiring/framework/container/loader"
	gohttp "github.com/km-arc/go-wiring/framework/http"
	"github.com/km-arc/go-wiring/framework/providers"
	"github.com/km-arc/go-wiring/routing"
)

const shutdownTimeout = 10 * time.Second

// Application is the composition root. It owns everything that lives for
// the whole process (configuration, logger, type registry, descriptors)
// and builds one container per request from them.
type Application struct {
	Config   *config.Config
	Log      *zap.Logger
	Registry *container.Registry

	descriptors []container.Descriptor
	variables   map[string]any
	providers   []container.ServiceProvider
}

// New creates the application over an already filled registry. Descriptors
// are loaded with Load.
func New(cfg *config.Config, log *zap.Logger, reg *container.Registry) *Application {
	if log == nil {
		log = zap.NewNop()
	}
	if reg == nil {
		reg = container.NewRegistry()
	}
	return &Application{
		Config:    cfg,
		Log:       log,
		Registry:  reg,
		variables: map[string]any{},
	}
}

// Load reads the descriptor files named by the configuration and checks
// them against the registry.
func (a *Application) Load() error {
	f, err := loader.LoadAll(a.Config.Container.Descriptors...)
	if err != nil {
		return err
	}
	return a.SetDescriptors(f.Descriptors, f.Variables)
}

// SetDescriptors replaces the descriptors and initial variables every new
// container starts with. They are checked before being accepted.
func (a *Application) SetDescriptors(ds []container.Descriptor, variables map[string]any) error {
	provided, err := a.provided()
	if err != nil {
		return err
	}
	if err := container.Check(a.Registry, ds, provided...); err != nil {
		return fmt.Errorf("invalid service descriptors: %w", err)
	}
	a.descriptors = ds
	a.variables = variables
	a.Log.Info("service descriptors loaded", zap.Int("count", len(ds)))
	return nil
}

// provided lists the services that exist in every container without a
// descriptor: the framework services and whatever the registered providers
// declare. Eager providers are registered on a scratch container to see
// what they add; deferred ones are taken at their Provides() word.
func (a *Application) provided() ([]string, error) {
	scratch, err := container.New(a.Registry, nil, nil, container.WithLogger(a.Log))
	if err != nil {
		return nil, err
	}
	reg := container.NewProviderRegistry(scratch)
	for _, p := range a.providers {
		if err := reg.Register(p); err != nil {
			return nil, fmt.Errorf("registering provider %T: %w", p, err)
		}
	}
	names := providers.Names()
	names = append(names, scratch.Names()...)
	names = append(names, scratch.Instances()...)
	return append(names, reg.Deferred()...), nil
}

// Descriptors returns the descriptors containers are built from.
func (a *Application) Descriptors() []container.Descriptor { return a.descriptors }

// Register adds a provider to every container built from now on. Providers
// should be registered before Load so the services they declare are known
// when descriptors are checked.
func (a *Application) Register(provider container.ServiceProvider) {
	a.providers = append(a.providers, provider)
}

// Container builds and boots a fresh container. r may be nil outside
// request handling.
func (a *Application) Container(r *http.Request) (*container.Container, error) {
	c, err := container.New(a.Registry, a.descriptors, a.variables, container.WithLogger(a.Log))
	if err != nil {
		return nil, err
	}
	reg := container.NewProviderRegistry(c)
	core := []container.ServiceProvider{
		&providers.ConfigServiceProvider{Config: a.Config},
		&providers.LoggerServiceProvider{Log: a.Log},
	}
	if r != nil {
		core = append(core, &providers.RequestServiceProvider{Request: gohttp.NewRequest(r)})
	}
	for _, p := range append(core, a.providers...) {
		if err := reg.Register(p); err != nil {
			return nil, err
		}
	}
	if err := reg.Boot(); err != nil {
		return nil, err
	}
	return c, nil
}

// Handler returns the HTTP entrypoint: a health check and every other path
// dispatched to the front service of a per-request container.
func (a *Application) Handler() http.Handler {
	debug := a.Config.App.Debug
	r := routing.New(a.Log)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		gohttp.NewResponse(w).Success(map[string]any{"status": "ok"})
	})
	r.Group(func(g *routing.Router) {
		g.Middleware(routing.Containers(a.Container, debug))
		g.Dispatch("/*", "@"+a.Config.Container.Front, debug)
	})
	return r
}

// Run serves HTTP on APP_PORT until ctx is cancelled, then shuts down
// gracefully.
func (a *Application) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + a.Config.App.Port,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.Log.Info("server listening",
			zap.String("addr", srv.Addr),
			zap.String("front", a.Config.Container.Front),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	a.Log.Info("server shutting down")
	return srv.Shutdown(shutdownCtx)
}

// Environment returns APP_ENV value.
func (a *Application) Environment() string { return a.Config.App.Env }
func (a *Application) IsLocal() bool       { return a.Environment() == "local" }
func (a *Application) IsProduction() bool  { return a.Config.IsProduction() }
func (a *Application) IsTesting() bool     { return a.Environment() == "testing" }
func (a *Application) IsDebug() bool       { return a.Config.App.Debug }
