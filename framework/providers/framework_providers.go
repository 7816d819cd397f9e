package providers

import (
	"go.uber.org/zap"

	"github.com/km-arc/go-wiring/framework/config"
	"github.com/km-arc/go-wiring/framework/container"
	gohttp "github.com/km-arc/go-wiring/framework/http"
)

// Service names the framework providers register.
const (
	ConfigService  = "config"
	LoggerService  = "logger"
	RequestService = "request"
)

// Names lists every service a framework provider may register, for static
// descriptor checks.
func Names() []string {
	return []string{ConfigService, LoggerService, RequestService}
}

// ── ConfigServiceProvider ─────────────────────────────────────────────────────

// ConfigServiceProvider exposes the application configuration.
//
// Registers:
//   - "config"  → *config.Config
//   - $app.name, $app.env, $app.debug, $app.port runtime variables
type ConfigServiceProvider struct {
	container.BaseProvider
	Config *config.Config
}

func (p *ConfigServiceProvider) Register(c *container.Container) error {
	c.Instance(ConfigService, p.Config)
	for name, value := range p.Config.Variables() {
		c.SetVariable(name, value)
	}
	return nil
}

// ── LoggerServiceProvider ─────────────────────────────────────────────────────

// LoggerServiceProvider exposes the shared logger.
//
// Registers:
//   - "logger"  → *zap.Logger
type LoggerServiceProvider struct {
	container.BaseProvider
	Log *zap.Logger
}

func (p *LoggerServiceProvider) Register(c *container.Container) error {
	c.Instance(LoggerService, p.Log)
	return nil
}

// ── RequestServiceProvider ────────────────────────────────────────────────────

// RequestServiceProvider exposes the current HTTP request.
//
// Registers:
//   - "request" → *gohttp.Request
//   - $request, $body, $query, $post, $server, $headers, $cookies, $route
type RequestServiceProvider struct {
	container.BaseProvider
	Request *gohttp.Request
}

func (p *RequestServiceProvider) Register(c *container.Container) error {
	vars, err := p.Request.Variables()
	if err != nil {
		return err
	}
	c.Instance(RequestService, p.Request)
	for name, value := range vars {
		c.SetVariable(name, value)
	}
	return nil
}

// Boot logs the request the container was built for.
func (p *RequestServiceProvider) Boot(c *container.Container) error {
	if !c.Has(LoggerService) {
		return nil
	}
	log, err := container.Resolve[*zap.Logger](c, LoggerService)
	if err != nil {
		return err
	}
	log.Debug("container ready for request",
		zap.String("method", p.Request.Method()),
		zap.String("path", p.Request.Path()),
	)
	return nil
}
