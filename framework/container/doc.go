// Package container provides a configuration-driven service container for
// Go.
//
// # Overview
//
// Services are declared as Descriptors: a registered type or factory, a list
// of argument tokens, a shared flag and optional hooks. The container builds
// a service the first time it is requested, resolving its argument tokens
// recursively, and caches shared services for the container's lifetime.
//
// Go has no runtime constructor lookup by name, so the host fills a Registry
// with constructors and factories once at startup:
//
//	reg := container.NewRegistry()
//	reg.RegisterConstructor("Engine", NewEngine)   // func() *Engine
//	reg.RegisterConstructor("Widget", NewWidget)   // func(*Engine, *Painter, string) *Widget
//	reg.RegisterFactory("Report", "fromBody", ParseReport)
//
// # Container Lifecycle
//
//  1. Registry: filled once per process
//  2. Create: c, err := container.New(reg, descriptors, variables)
//  3. Resolve: c.Get("Widget")
//  4. Discard the container with the request
//
// # Argument tokens
//
//	"red"              literal
//	"$body"            runtime variable        "$?body"   optional
//	"@Engine"          service                 "@?Engine" optional
//	"@Engine::start"   bound method (*BoundMethod)
//	"%Mailer"          lazy service (*Lazy)    "%?Mailer" optional
//	"%Mailer::send"    lazy bound method
//	"@:module"         every service named "<x>:module", as a *Group
//	"%:module::boot"   the same, lazily, each bound to boot
//	"\@literal"        the literal string "@literal"
//
// Slices and maps nest. An absent optional reference truncates a positional
// list at its position and is omitted from a map.
//
// # Descriptors
//
//	c.Service("Widget").
//	    Type("Widget").
//	    Args("@Engine", "@Painter", "red").
//	    Call("setLogger", "@?Logger").   // w.SetLogger(logger, "setLogger")
//	    Listen("@Audit::widgetBuilt").
//	    Add()
//
// A descriptor named "<x>-parent" is a template: other descriptors inherit
// it through Parent and it is never built itself.
//
// # Service Providers
//
//	type AppServiceProvider struct{ container.BaseProvider }
//
//	func (p *AppServiceProvider) Register(c *container.Container) error {
//	    return c.Service("Mailer").Type("SMTPMailer").Args("$mail.dsn").Add()
//	}
//
//	providers := container.NewProviderRegistry(c)
//	providers.Register(&AppServiceProvider{})
//	providers.Boot()
//
// # Deferred Providers
//
//	func (p *HeavyProvider) IsDeferred() bool   { return true }
//	func (p *HeavyProvider) Provides() []string { return []string{"Heavy"} }
//
// A deferred provider registers the first time one of its names is looked
// up and found undeclared.
package container
