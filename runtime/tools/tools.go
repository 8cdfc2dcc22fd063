// Package tools implements the built-in tool handlers: REST calls, broker
// publishes, JSON transforms, ticket opening, and JMS routing. Handlers share
// a Toolset holding the injected collaborators (HTTP client, broker producer,
// secret provider, service config) so tests can substitute fakes without
// touching globals.
package tools

import (
	"net/http"
	"time"

	"github.com/intermesh-io/intermesh/broker"
	"github.com/intermesh-io/intermesh/runtime/config"
	"github.com/intermesh-io/intermesh/runtime/registry"
	"github.com/intermesh-io/intermesh/runtime/secrets"
	"github.com/intermesh-io/intermesh/runtime/telemetry"
)

// httpTimeout bounds each outbound REST call.
const httpTimeout = 5 * time.Second

// Toolset owns the collaborators the tool handlers need.
type Toolset struct {
	cfg      *config.Config
	secrets  *secrets.Provider
	producer broker.Producer
	client   *http.Client
	logger   telemetry.Logger
}

// Options configures a Toolset.
type Options struct {
	// Config supplies service base URLs and auth specs. May be nil.
	Config *config.Config
	// Secrets resolves auth secrets. May be nil when Config has no auth specs.
	Secrets *secrets.Provider
	// Producer is the broker capability; nil means unavailable and the
	// publish tool uses its outbox fallback.
	Producer broker.Producer
	// Client overrides the HTTP client; defaults to one with a 5s timeout.
	Client *http.Client
	// Logger receives tool telemetry; defaults to a noop logger.
	Logger telemetry.Logger
}

// NewToolset builds a toolset from the given options.
func NewToolset(opts Options) *Toolset {
	cfg := opts.Config
	if cfg == nil {
		cfg = &config.Config{}
	}
	sp := opts.Secrets
	if sp == nil {
		sp = secrets.NewProvider(secrets.Config{})
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: httpTimeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.NoopLogger{}
	}
	return &Toolset{
		cfg:      cfg,
		secrets:  sp,
		producer: opts.Producer,
		client:   client,
		logger:   logger,
	}
}

// Register installs every built-in tool into the registry. Called once during
// startup wiring, before the registry is sealed.
func (t *Toolset) Register(reg *registry.Registry) {
	reg.Register("call_rest", t.CallREST)
	reg.Register("publish_kafka", t.PublishKafka)
	reg.Register("transform_json", t.TransformJSON)
	reg.Register("open_ticket", t.OpenTicket)
	reg.Register("route_jms", t.RouteJMS)
}

func stringParam(params map[string]any, key, fallback string) string {
	if v, ok := params[key].(string); ok && v != "" {
		return v
	}
	return fallback
}
