package app

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/km-arc/go-wiring/framework/container"
	gohttp "github.com/km-arc/go-wiring/framework/http"
)

// ── Greeter ───────────────────────────────────────────────────────────────────

// Greeter answers /greet?name=... .
type Greeter struct {
	greeting string
	app      string
	log      *zap.Logger
}

func NewGreeter(greeting, appName string) *Greeter {
	if greeting == "" {
		greeting = "Hello"
	}
	return &Greeter{greeting: greeting, app: appName, log: zap.NewNop()}
}

// SetLogger is called through setter injection.
func (g *Greeter) SetLogger(log *zap.Logger) {
	if log != nil {
		g.log = log
	}
}

func (g *Greeter) Handle(req *gohttp.Request) (any, error) {
	name := req.Query("name", "world")
	g.log.Debug("greeting", zap.String("name", name))
	return map[string]any{
		"message": fmt.Sprintf("%s, %s!", g.greeting, name),
		"app":     g.app,
	}, nil
}

// ── Echo ──────────────────────────────────────────────────────────────────────

// Echo answers with what it was built from.
type Echo struct {
	body    string
	headers map[string]string
}

func NewEcho(body string, headers map[string]string) *Echo {
	return &Echo{body: body, headers: headers}
}

func (e *Echo) Handle(*gohttp.Request) (any, error) {
	return map[string]any{"body": e.body, "headers": e.headers}, nil
}

// ── Inspector ─────────────────────────────────────────────────────────────────

// Inspector reports what the request's container declares and has built.
type Inspector struct {
	c     *container.Container
	audit *Audit
}

func NewInspector(c *container.Container, audit *Audit) *Inspector {
	return &Inspector{c: c, audit: audit}
}

func (i *Inspector) Handle(*gohttp.Request) (any, error) {
	var resolved []string
	for _, name := range i.c.Names() {
		if i.c.Resolved(name) {
			resolved = append(resolved, name)
		}
	}
	groups := map[string][]string{}
	for _, m := range i.c.Group("handler") {
		groups["handler"] = append(groups["handler"], m.Short)
	}
	return map[string]any{
		"services": i.c.Names(),
		"resolved": resolved,
		"groups":   groups,
		"built":    i.audit.Built(),
	}, nil
}

// ── Audit ─────────────────────────────────────────────────────────────────────

// Audit records every instance its listener is attached to.
type Audit struct {
	mu    sync.Mutex
	built []string
}

func NewAudit() *Audit { return &Audit{} }

// Record is used as a post-construction listener.
func (a *Audit) Record(instance any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.built = append(a.built, fmt.Sprintf("%T", instance))
}

// Built returns the recorded type names, sorted.
func (a *Audit) Built() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := append([]string(nil), a.built...)
	sort.Strings(out)
	return out
}
