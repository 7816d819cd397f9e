package container

import (
	"slices"
	"sync"

	"go.uber.org/zap"
)

// ── ServiceProvider interface ─────────────────────────────────────────────────

// ServiceProvider groups the descriptors and pre-built instances of one
// concern.
//
// Register declares services on the container and must not resolve any.
// Boot runs after every eager provider is registered, so it may resolve
// anything.
//
//	type MailProvider struct{ container.BaseProvider }
//
//	func (p *MailProvider) Register(c *container.Container) error {
//	    return c.Service("Mailer").Type("SMTPMailer").Args("$mail.dsn").Add()
//	}
type ServiceProvider interface {
	Register(c *Container) error
	Boot(c *Container) error

	// Provides lists the service names a deferred provider declares.
	Provides() []string

	// IsDeferred returns true if the provider is only registered the first
	// time one of its Provides() names is looked up.
	IsDeferred() bool
}

// ── BaseProvider ──────────────────────────────────────────────────────────────

// BaseProvider is an embeddable struct with no-op Boot, Provides and
// IsDeferred.
type BaseProvider struct{}

func (p *BaseProvider) Boot(_ *Container) error { return nil }
func (p *BaseProvider) Provides() []string      { return nil }
func (p *BaseProvider) IsDeferred() bool        { return false }

// ── ProviderRegistry ──────────────────────────────────────────────────────────

// ProviderRegistry registers and boots the providers of one container,
// including deferred ones.
type ProviderRegistry struct {
	c *Container

	mu         sync.Mutex
	eager      []ServiceProvider
	deferred   map[string]ServiceProvider // service name → provider
	registered map[ServiceProvider]bool
	booted     bool
}

// NewProviderRegistry creates a registry bound to c.
func NewProviderRegistry(c *Container) *ProviderRegistry {
	r := &ProviderRegistry{
		c:          c,
		deferred:   make(map[string]ServiceProvider),
		registered: make(map[ServiceProvider]bool),
	}
	c.OnMissing(r.loadDeferred)
	return r
}

// Register adds a provider and calls its Register() method unless it is
// deferred. Registering the same provider twice is a no-op.
func (r *ProviderRegistry) Register(provider ServiceProvider) error {
	r.mu.Lock()
	if r.registered[provider] {
		r.mu.Unlock()
		return nil
	}
	r.registered[provider] = true

	if provider.IsDeferred() {
		for _, name := range provider.Provides() {
			r.deferred[name] = provider
		}
		r.mu.Unlock()
		return nil
	}
	r.eager = append(r.eager, provider)
	booted := r.booted
	r.mu.Unlock()

	if err := provider.Register(r.c); err != nil {
		return err
	}
	// Late providers boot immediately.
	if booted {
		return provider.Boot(r.c)
	}
	return nil
}

// Deferred returns the service names served by deferred providers that
// have not been loaded yet, sorted.
func (r *ProviderRegistry) Deferred() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.deferred))
	for k := range r.deferred {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// loadDeferred registers the deferred provider of name, if any.
func (r *ProviderRegistry) loadDeferred(c *Container, name string) bool {
	r.mu.Lock()
	provider, ok := r.deferred[name]
	if !ok {
		r.mu.Unlock()
		return false
	}
	for _, n := range provider.Provides() {
		delete(r.deferred, n)
	}
	booted := r.booted
	r.mu.Unlock()

	if err := provider.Register(c); err != nil {
		c.log.Warn("deferred provider failed to register", zap.String("service", name), zap.Error(err))
		return false
	}
	if booted {
		if err := provider.Boot(c); err != nil {
			c.log.Warn("deferred provider failed to boot", zap.String("service", name), zap.Error(err))
			return false
		}
	}
	return true
}

// Boot calls Boot() on all eager providers, once.
func (r *ProviderRegistry) Boot() error {
	r.mu.Lock()
	if r.booted {
		r.mu.Unlock()
		return nil
	}
	r.booted = true
	providers := append([]ServiceProvider(nil), r.eager...)
	r.mu.Unlock()

	for _, provider := range providers {
		if err := provider.Boot(r.c); err != nil {
			return err
		}
	}
	return nil
}

// Booted returns true if Boot() has been called.
func (r *ProviderRegistry) Booted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.booted
}

// Providers returns all registered eager providers.
func (r *ProviderRegistry) Providers() []ServiceProvider {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ServiceProvider(nil), r.eager...)
}
