package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"goa.design/clue/log"

	"github.com/intermesh-io/intermesh/broker"
	"github.com/intermesh-io/intermesh/httpapi"
	"github.com/intermesh-io/intermesh/runtime/approval"
	"github.com/intermesh-io/intermesh/runtime/config"
	"github.com/intermesh-io/intermesh/runtime/orchestrator"
	"github.com/intermesh-io/intermesh/runtime/outbox"
	"github.com/intermesh-io/intermesh/runtime/policy"
	"github.com/intermesh-io/intermesh/runtime/registry"
	"github.com/intermesh-io/intermesh/runtime/sanitize"
	"github.com/intermesh-io/intermesh/runtime/secrets"
	"github.com/intermesh-io/intermesh/runtime/telemetry"
	"github.com/intermesh-io/intermesh/runtime/tools"
)

func main() {
	var (
		httpPortF = flag.String("http-port", "8080", "HTTP listen port")
		policyF   = flag.String("policies", envOr("POLICY_PATH", "configs/policies.yaml"), "Path to the policies YAML file")
		configF   = flag.String("config", envOr("APP_CONFIG", "configs/config.yaml"), "Path to the service config YAML file")
		outboxF   = flag.String("outbox", envOr("OUTBOX_PATH", "outbox.db"), "Path to the outbox database")
		dbgF      = flag.Bool("debug", false, "Enable debug logs")
	)
	flag.Parse()

	// Setup logger.
	format := log.FormatJSON
	if log.IsTerminal() {
		format = log.FormatTerminal
	}
	ctx := log.Context(context.Background(), log.WithFormat(format))
	if *dbgF {
		ctx = log.Context(ctx, log.WithDebug())
		log.Debugf(ctx, "debug logs enabled")
	}

	if err := run(ctx, *httpPortF, *policyF, *configF, *outboxF); err != nil {
		log.Fatalf(ctx, err, "exiting")
	}
}

func run(ctx context.Context, httpPort, policyPath, configPath, outboxPath string) error {
	pol, err := loadPolicies(ctx, policyPath)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(ctx, configPath)
	if err != nil {
		return err
	}

	shutdownTracing, err := telemetry.Init(ctx, "intermesh")
	if err != nil {
		return fmt.Errorf("configure tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Errorf(flushCtx, err, "flush spans")
		}
	}()

	ob, err := outbox.Open(outboxPath)
	if err != nil {
		return err
	}
	defer ob.Close()

	redactor := sanitize.New(pol.DataPolicy.RedactFields)
	logger := telemetry.NewClueLogger(redactor)

	env := broker.FromEnv()
	producer, err := broker.NewProducer(env)
	if err != nil {
		// Degrade to the outbox fallback rather than refusing to start.
		log.Errorf(ctx, err, "broker producer unavailable")
		producer = nil
	}
	if producer != nil {
		defer producer.Close()
	}

	toolset := tools.NewToolset(tools.Options{
		Config:   cfg,
		Secrets:  secrets.NewProvider(cfg.Secrets),
		Producer: producer,
		Logger:   logger,
	})
	reg := registry.New()
	toolset.Register(reg)
	reg.Seal()

	orch := orchestrator.New(orchestrator.Options{
		Policies:  pol,
		Outbox:    ob,
		Approvals: approval.NewStore(),
		Registry:  reg,
		Logger:    logger,
		Tracer:    telemetry.NewTracer(),
	})

	var factory httpapi.ConsumerFactory
	if env.Configured() {
		factory = func(groupID, topic string) (broker.Consumer, error) {
			return broker.NewConsumer(env, groupID, topic)
		}
	}
	server := &http.Server{
		Addr:              net.JoinHostPort("", httpPort),
		Handler:           httpapi.New(orch, logger, factory),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		errc <- fmt.Errorf("signal: %s", <-c)
	}()
	go func() {
		log.Print(ctx, log.KV{K: "msg", V: "http server listening"}, log.KV{K: "port", V: httpPort})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	log.Print(ctx, log.KV{K: "msg", V: "stopping"}, log.KV{K: "reason", V: (<-errc).Error()})
	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(stopCtx)
}

func loadPolicies(ctx context.Context, path string) (*policy.Snapshot, error) {
	if _, err := os.Stat(path); err != nil {
		log.Print(ctx, log.KV{K: "msg", V: "policies file missing, using defaults"}, log.KV{K: "path", V: path})
		return policy.Default(), nil
	}
	return policy.Load(path)
}

func loadConfig(ctx context.Context, path string) (*config.Config, error) {
	if _, err := os.Stat(path); err != nil {
		log.Print(ctx, log.KV{K: "msg", V: "config file missing, using empty config"}, log.KV{K: "path", V: path})
		return &config.Config{}, nil
	}
	return config.Load(path)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
