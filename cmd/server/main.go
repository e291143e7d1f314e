// Pcsboard serves the port community system dashboard API: vessel status,
// alerts, favorites and the maritime assistant.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	otelpyroscope "github.com/grafana/otel-profiling-go"
	"github.com/linnemanlabs/go-core/cfg"
	"github.com/linnemanlabs/go-core/opshttp"
	"github.com/linnemanlabs/go-core/prof"
	"go.opentelemetry.io/otel"

	"github.com/linnemanlabs/go-core/health"

	"github.com/linnemanlabs/go-core/httpmw"
	"github.com/linnemanlabs/go-core/httpserver"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/go-core/metrics"
	"github.com/linnemanlabs/go-core/otelx"
	v "github.com/linnemanlabs/go-core/version"

	"github.com/linnemanlabs/pcsboard/internal/agent"
	"github.com/linnemanlabs/pcsboard/internal/agent/claude"
	agentwebhook "github.com/linnemanlabs/pcsboard/internal/agent/webhook"
	"github.com/linnemanlabs/pcsboard/internal/api"
	vc "github.com/linnemanlabs/pcsboard/internal/cfg"
	"github.com/linnemanlabs/pcsboard/internal/dashboard"
	"github.com/linnemanlabs/pcsboard/internal/favorites"
	"github.com/linnemanlabs/pcsboard/internal/notify/slack"
	"github.com/linnemanlabs/pcsboard/internal/tools"
	"github.com/linnemanlabs/pcsboard/internal/webhook"
)

const appName = "pcsboard"
const component = "server"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal error:", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Set app name and component
	v.AppName = appName
	v.Component = component

	// Get build/version info
	vi := v.Get()

	// each package registers its own flags and options struct
	var (
		appCfg    vc.Config
		httpCfg   httpserver.Config
		httpmwCfg httpmw.Config
		logCfg    log.Config
		opsCfg    opshttp.Config
		profCfg   prof.Config
		traceCfg  otelx.Config
	)

	// register flags for each package, which will be parsed into the shared config struct
	appCfg.RegisterFlags(flag.CommandLine)
	httpCfg.RegisterFlags(flag.CommandLine)
	httpmwCfg.RegisterFlags(flag.CommandLine)
	logCfg.RegisterFlags(flag.CommandLine)
	opsCfg.RegisterFlags(flag.CommandLine)
	profCfg.RegisterFlags(flag.CommandLine)
	traceCfg.RegisterFlags(flag.CommandLine)
	var showVersion bool
	flag.BoolVar(&showVersion, "V", false, "Print version+build information and exit")

	// parse flags to get config values from cmdline, we check env vars next which do not override cmdline flags
	flag.Parse()
	if showVersion {
		fmt.Printf(
			"%s (%s) %s (commit=%s, commit_date=%s, build_id=%s, build_date=%s, go=%s, dirty=%v)\n",
			vi.AppName, vi.Component, vi.Version, vi.Commit, vi.CommitDate, vi.BuildId, vi.BuildDate, vi.GoVersion,
			vi.VCSDirty != nil && *vi.VCSDirty,
		)
		return nil
	}

	// Fill in config values from environment variables with prefix PCSBOARD_,
	// these do not override cmdline flags
	cfg.FillFromEnv(flag.CommandLine, "PCSBOARD_", func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	})

	if err := errors.Join(
		appCfg.Validate(),
		httpCfg.Validate(),
		httpmwCfg.Validate(),
		logCfg.Validate(),
		opsCfg.Validate(),
		profCfg.Validate(),
		traceCfg.Validate(),
	); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	// cross-cutting checks that only main can validate
	if appCfg.APIPort == opsCfg.Port {
		return fmt.Errorf("http and admin ports must differ (both %d)", appCfg.APIPort)
	}

	// initialize logger early
	lg, err := log.New(logCfg.ToOptions(v.AppName))
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	// no-op for slog/stderr, but here if we swap backends in the future to ensure any buffered logs are flushed on shutdown
	defer func() { _ = lg.Sync() }()

	// create a logger with component field pre-filled for structured logging in this package
	L := lg.With("component", vi.Component)

	// add logger to context
	ctx = log.WithContext(ctx, L)

	L.Info(ctx, "initializing application",
		"version", vi.Version,
		"commit", vi.Commit,
		"commit_date", vi.CommitDate,
		"build_id", vi.BuildId,
		"build_date", vi.BuildDate,
		"go_version", vi.GoVersion,
		"vcs_dirty", vi.VCSDirty,
		"http_port", appCfg.APIPort,
		"kv_backend", appCfg.KVBackend,
		"assistant", appCfg.Assistant(),
		"refresh_seconds", appCfg.RefreshSeconds,
		"admin_port", opsCfg.Port,
		"enable_pprof", opsCfg.EnablePprof,
		"enable_pyroscope", profCfg.EnablePyroscope,
		"enable_tracing", traceCfg.EnableTracing,
		"trace_sample", traceCfg.TraceSample,
		"trace_insecure", traceCfg.Insecure,
		"otlp_endpoint", traceCfg.OTLPEndpoint,
		"pyro_server", profCfg.PyroServer,
		"pyro_tenant", profCfg.PyroTenantID,
		"include_error_links", logCfg.IncludeErrorLinks,
		"max_error_links", logCfg.MaxErrorLinks,
		"trusted_proxy_hops", httpmwCfg.TrustedProxyHops,
	)

	// Setup pyroscope profiling early so we get profiles from the entire app lifetime
	profOpts := profCfg.ToOptions()
	profOpts.AppName = v.AppName
	profOpts.Tags = map[string]string{
		"app":       v.AppName,
		"component": v.Component,
		"version":   vi.Version,
		"commit":    vi.Commit,
		"build_id":  vi.BuildId,
		"source":    "lmlabs-go-agent",
	}
	// Start profiling, returns a stop function to call for clean shutdown (flush buffers, etc)
	stopProf, profErr := prof.Start(ctx, profOpts)
	if profErr != nil {
		L.Error(ctx, profErr, "pyroscope start failed", "pyro_server", profCfg.PyroServer)
	}
	if stopProf != nil {
		defer stopProf()
	}

	// Setup otel for tracing
	traceOpts := traceCfg.ToOptions()
	traceOpts.Service = v.AppName
	traceOpts.Component = v.Component
	traceOpts.Version = v.Version

	// Start otel, returns a shutdown function to call for clean shutdown (flush buffers, etc)
	shutdownOtelx, err := otelx.Init(ctx, traceOpts)
	if err != nil {
		L.Error(ctx, err, "otel init failed")
	}
	if shutdownOtelx != nil {
		defer func() { _ = shutdownOtelx(context.Background()) }()
	}

	// Link spans to pyroscope profiles when both are running
	if profErr == nil && profCfg.EnablePyroscope && traceCfg.EnableTracing {
		otel.SetTracerProvider(otelpyroscope.NewTracerProvider(otel.GetTracerProvider()))
	}

	var m = metrics.New()
	m.SetBuildInfoFromVersion(v.AppName, "server", &vi)
	m.SetProfilingActive(profErr == nil && profCfg.EnablePyroscope)

	// PCS webhook client, retries and fetch metrics feed the dashboard service
	dashMetrics := dashboard.NewMetrics(m.Registry())
	pcsClient := webhook.New(appCfg.WebhookURL, L,
		webhook.WithRetry(uint(appCfg.WebhookRetries), time.Second, 30*time.Second), //nolint:gosec // validated 0..10
		webhook.WithHooks(dashMetrics.WebhookHooks()),
	)

	// Key-value store backing favorites and the assistant conversation
	store, closeStore, err := openStore(ctx, &appCfg, dashMetrics)
	if err != nil {
		return err
	}
	defer closeStore()
	L.Info(ctx, "kv store ready", "backend", appCfg.KVBackend)

	// Slack executive report when critical alerts rise
	var notifier dashboard.Notifier
	if appCfg.SlackWebhookURL != "" {
		notifier = slack.New(appCfg.SlackWebhookURL, appCfg.DashboardURL, L)
		L.Info(ctx, "notifier enabled", "type", "slack")
	}

	dash := dashboard.NewService(pcsClient, L, dashMetrics, dashboard.Options{
		StaleAfter: appCfg.StaleAfter(),
		Notifier:   notifier,
	})

	refreshCtx, stopRefresh := context.WithCancel(ctx)
	defer stopRefresh()
	go dash.Run(refreshCtx, appCfg.RefreshInterval())

	// Assistant provider: Claude with PCS tools, or an external agent webhook
	var provider agent.Provider
	switch appCfg.Assistant() {
	case "claude":
		registry := tools.NewRegistry()
		tools.RegisterPCS(registry, dash)
		for _, def := range registry.ToToolDefs() {
			L.Info(ctx, "registered tool", "name", def.Name)
		}
		provider = claude.NewAssistant(claude.New(appCfg.ClaudeAPIKey, appCfg.ClaudeModel), registry, L)
		L.Info(ctx, "initialized assistant", "provider", "claude", "model", appCfg.ClaudeModel)
	case "webhook":
		provider = agentwebhook.New(appCfg.AgentWebhookURL, nil)
		L.Info(ctx, "initialized assistant", "provider", "webhook", "endpoint", appCfg.AgentWebhookURL)
	default:
		L.Info(ctx, "assistant disabled")
	}

	deps := api.Deps{
		Dashboard: dash,
		Favorites: favorites.NewVessels(store, L),
		Messages:  favorites.NewMessages(store, L),
		Token:     appCfg.APIToken,
	}
	if provider != nil {
		deps.Assistant = agent.NewService(provider, favorites.NewConversation(store, L), L, agent.NewMetrics(m.Registry()))
	}

	var shutdownGate health.ShutdownGate

	readiness := health.All(
		shutdownGate.Probe(),
	)
	liveness := health.Fixed(true, "")

	// ops listener: metrics, health and pprof, kept off the public port
	opsOpts := opsCfg.ToOptions()
	opsOpts.Metrics = m.Handler()
	opsOpts.Health = liveness
	opsOpts.Readiness = readiness
	opsOpts.UseRecoverMW = true
	opsOpts.OnPanic = m.IncHttpPanic

	opsHTTPStop, err := opshttp.Start(ctx, L, opsOpts)
	if err != nil {
		L.Error(ctx, err, "failed to start ops http listener")
		return err
	}
	defer func() {
		err := opsHTTPStop(context.Background())
		if err != nil {
			L.Error(ctx, err, "failed to stop ops http listener")
		}
	}()

	r := newRouter(L, deps, func(r chi.Router) {
		r.Get("/-/healthy", health.HealthzHandler(liveness))
		r.Get("/-/ready", health.ReadyzHandler(readiness))
	})
	h := instrument(r, L, m.Middleware, httpmw.ClientIPOptions{TrustedHops: httpmwCfg.TrustedProxyHops})

	apiOpts, err := httpCfg.ToOptions()
	if err != nil {
		L.Error(ctx, err, "invalid http config")
		return err
	}

	apiHTTPStop, err := httpserver.Start(ctx, fmt.Sprintf(":%d", appCfg.APIPort), h, L, apiOpts)
	if err != nil {
		L.Error(ctx, err, "failed to start api http listener")
		return err
	}
	defer func() {
		err := apiHTTPStop(context.Background())
		if err != nil {
			L.Error(ctx, err, "failed to stop api http listener")
		}
	}()

	// type=notify units wait for READY=1
	if err := notifySystemd(); err != nil {
		L.Warn(ctx, "failed to notify systemd of readiness", "error", err)
	}

	<-ctx.Done()

	L.Info(context.Background(), "shutdown signal received")

	// readiness fails from here on so the load balancer stops routing to us
	shutdownGate.Set("draining")
	L.Info(context.Background(), "shutdown gate closed")

	forceCh := make(chan os.Signal, 1)
	signal.Notify(forceCh, os.Interrupt, syscall.SIGTERM)
	drain(L, time.Duration(appCfg.DrainSeconds)*time.Second, forceCh)
	signal.Stop(forceCh)

	stopAll(L, time.Duration(appCfg.ShutdownBudgetSeconds)*time.Second, []stopper{
		{"api http server", apiHTTPStop},
		{"snapshot refresher", func(context.Context) error { stopRefresh(); return nil }},
		{"ops http server", opsHTTPStop},
		{"otel", shutdownOtelx},
	})

	if stopProf != nil {
		stopProf()
	}

	L.Info(context.Background(), "shutdown complete")
	return nil
}
