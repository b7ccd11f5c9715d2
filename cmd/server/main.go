package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kestrelworks/inkwell/internal/api"
	"github.com/kestrelworks/inkwell/internal/auth"
	"github.com/kestrelworks/inkwell/internal/cfg"
	"github.com/kestrelworks/inkwell/internal/content"
	"github.com/kestrelworks/inkwell/internal/gitcgi"
	"github.com/kestrelworks/inkwell/internal/httpmw"
	"github.com/kestrelworks/inkwell/internal/httpserver"
	"github.com/kestrelworks/inkwell/internal/log"
	"github.com/kestrelworks/inkwell/internal/metrics"
	"github.com/kestrelworks/inkwell/internal/opshttp"
	"github.com/kestrelworks/inkwell/internal/otelx"
	"github.com/kestrelworks/inkwell/internal/probe"
	"github.com/kestrelworks/inkwell/internal/prof"
	"github.com/kestrelworks/inkwell/internal/ratelimit"
	"github.com/kestrelworks/inkwell/internal/storage"
	v "github.com/kestrelworks/inkwell/internal/version"
	"github.com/kestrelworks/inkwell/internal/webhook"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Get build/version info
	vi := v.Get()

	var conf cfg.App
	var showVersion bool

	// Parse config from flags and env
	cfg.Register(flag.CommandLine, &conf)
	flag.BoolVar(&showVersion, "V", false, "Print version+build information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf(
			"%s %s (commit=%s, build_date=%s, go=%s, dirty=%v)\n",
			vi.AppName, vi.Version, vi.Commit, vi.BuildDate, vi.GoVersion,
			vi.VCSDirty != nil && *vi.VCSDirty,
		)
		os.Exit(0)
	}

	// Fill in config from environment variables with prefix INKWELL_ and validate
	cfg.FillFromEnv(flag.CommandLine, "INKWELL_", func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	})

	// validate config
	if err := cfg.Validate(conf); err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}

	// Setup logging
	lvl, err := log.ParseLevel(conf.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level %s: %v\n", conf.LogLevel, err)
		os.Exit(1)
	}
	lg, err := log.New(log.Options{
		App:        v.AppName,
		Version:    v.Version,
		Commit:     v.Commit,
		Level:      lvl,
		JsonFormat: conf.LogJSON,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger init error:", err)
		os.Exit(1)
	}
	defer lg.Sync()
	L := lg.With("component", "server")
	ctx = log.WithContext(ctx, L)

	L.Info(ctx, "initializing application",
		"version", vi.Version,
		"commit", vi.Commit,
		"build_date", vi.BuildDate,
		"go_version", vi.GoVersion,
		"vcs_dirty", vi.VCSDirty,
		"http_port", conf.HTTPPort,
		"admin_port", conf.AdminPort,
		"enable_pprof", conf.EnablePprof,
		"enable_pyroscope", conf.EnablePyroscope,
		"enable_tracing", conf.EnableTracing,
		"otlp_endpoint", conf.OTLPEndpoint,
		"trace_sample", conf.TraceSample,
		"content_root", conf.ContentRoot,
		"git_repo_root", conf.GitRepoRoot,
		"webhook_targets", len(cfg.SplitWebhookURLs(conf.WebhookURLs)),
		"assets_s3_bucket", conf.AssetsS3Bucket,
	)

	// Setup pyroscope profiling
	stopProf, err := prof.Start(ctx, prof.Options{
		Enabled:       conf.EnablePyroscope,
		AppName:       v.AppName,
		ServerAddress: conf.PyroServer,
		Tags: map[string]string{
			"app":       v.AppName,
			"component": "server",
			"version":   vi.Version,
			"commit":    vi.Commit,
		},
	})
	if err != nil {
		L.Error(ctx, err, "pyroscope start failed", "pyro_server", conf.PyroServer)
	}
	defer func() { stopProf() }()

	// Setup otel for tracing
	// Insecure is true because we only write to a collector on localhost
	shutdownOTEL, err := otelx.Init(ctx, otelx.Options{
		Enabled:   conf.EnableTracing,
		Endpoint:  conf.OTLPEndpoint,
		Insecure:  true,
		Sample:    conf.TraceSample,
		Service:   v.AppName,
		Component: "server",
		Version:   vi.Version,
	})
	if err != nil {
		L.Error(ctx, err, "otel init failed")
	}
	defer func() { _ = shutdownOTEL(context.Background()) }()

	// Setup metrics
	m := metrics.New()
	m.SetBuildInfoFromVersion(v.AppName, "server", vi)
	m.SetProfilingActive(conf.EnablePyroscope)

	// Content cache over the git worktree
	contentMgr := content.NewManager(conf.ContentRoot, content.Limits{
		MaxFileBytes:  conf.ContentMaxFileBytes,
		MaxTotalBytes: conf.ContentMaxTotalBytes,
	}, L)

	loadStart := time.Now()
	if err := contentMgr.Refresh(ctx); err != nil {
		// Serve empty until the first successful refresh rather than
		// refusing to start; readiness stays false meanwhile.
		m.IncRefresh(false)
		L.Error(ctx, err, "initial content load failed, serving empty until refresh")
	} else {
		m.IncRefresh(true)
		m.ObserveLoadDuration(time.Since(loadStart))
		if snap, ok := contentMgr.Get(); ok {
			posts, series := snap.Counts()
			m.SetSnapshotStats(posts, series, len(snap.Issues()), snap.LoadedAt(), snap.Fingerprint())
			L.Info(ctx, "initial content loaded",
				"posts", posts,
				"series", series,
				"issues", len(snap.Issues()),
				"fingerprint", snap.Fingerprint()[:12],
			)
		}
	}

	// Admin token gate for elevated API queries and git endpoints
	gate := auth.NewGate(auth.TokenSource(conf.AdminToken), L)

	// Git smart HTTP backend
	var gitBackend *gitcgi.Backend
	if conf.GitRepoRoot != "" {
		gitBackend = gitcgi.NewBackend(conf.GitRepoRoot, conf.GitBackendPath, L)
		if !gitBackend.IsValidRepo() {
			L.Error(ctx, fmt.Errorf("no .git or HEAD under %s", conf.GitRepoRoot),
				"git repo root is not a git repository")
			os.Exit(1)
		}
	}

	// Webhook dispatcher for post-push notifications
	var hooks *webhook.Dispatcher
	if urls := cfg.SplitWebhookURLs(conf.WebhookURLs); len(urls) > 0 {
		secret, err := auth.TokenSource(conf.WebhookSecret).Resolve()
		if err != nil {
			L.Error(ctx, err, "webhook secret resolution failed")
			os.Exit(1)
		}
		targets := make([]webhook.Target, 0, len(urls))
		for _, u := range urls {
			targets = append(targets, webhook.Target{URL: u, Secret: secret})
		}
		hooks = webhook.NewDispatcher(targets, L,
			webhook.WithTimeout(conf.WebhookTimeout),
			webhook.WithResultHook(func(_ string, err error) {
				m.IncWebhookDelivery(err == nil)
			}),
		)
	}

	// Optional S3 asset store
	var assets *storage.Store
	if conf.AssetsS3Bucket != "" {
		assets, err = storage.New(ctx, storage.Options{
			Bucket:        conf.AssetsS3Bucket,
			Prefix:        conf.AssetsS3Prefix,
			Region:        conf.AssetsS3Region,
			Endpoint:      conf.AssetsS3Endpoint,
			PublicBaseURL: conf.AssetsPublicBaseURL,
			Logger:        L,
		})
		if err != nil {
			L.Error(ctx, err, "asset store init failed")
			os.Exit(1)
		}
	}

	apiHandler := api.New(api.Config{
		Content:    contentMgr,
		Gate:       gate,
		Logger:     L,
		Assets:     assets,
		Git:        gitBackend,
		GitMaxBody: conf.GitMaxBodyBytes,
		GitTimeout: conf.GitTimeout,
		Hooks:      hooks,
		Metrics:    m,
	})

	// setup toggle for server shutdown
	var gateProbe probe.ShutdownGate

	// readiness: shutdown gate plus a loaded content snapshot
	readiness := probe.Multi(
		gateProbe.Probe(),
		probe.Func(func(context.Context) error {
			if _, ok := contentMgr.Get(); !ok {
				return fmt.Errorf("content: no active snapshot")
			}
			return nil
		}),
	)

	// Per-IP rate limiter for the API (git endpoints are exempt)
	var limiter *ratelimit.IPLimiter
	if conf.RateLimitRPS > 0 {
		limiter = ratelimit.New(ctx,
			ratelimit.WithRate(conf.RateLimitRPS, conf.RateLimitBurst),
			ratelimit.WithOnDenied(func(ip string) {
				m.IncRateLimitDenied()
			}),
			ratelimit.WithOnFirstDenied(func(ip string) {
				L.Warn(ctx, "rate limit triggered", "ip", ip)
			}),
		)
	}

	serverOpts := &httpserver.Options{
		Logger:       L,
		Port:         conf.HTTPPort,
		UseRecoverMW: true,
		OnPanic:      m.IncHttpPanic,
		MetricsMW:    m.Middleware,
		Health:       probe.Static(true, ""),
		Readiness:    readiness,
		ContentInfo:  contentMgr,
		ClientIPOpts: httpmw.ClientIPOptions{TrustedHops: conf.TrustedHops},
		APIRoutes:    apiHandler.Routes,
		// git transfers stream for minutes, the listener must not cut them
		WriteTimeout: 0,
	}
	if limiter != nil {
		serverOpts.RateLimitMW = limiter.Middleware
	}

	apiHTTPStop, err := httpserver.Start(ctx, serverOpts)
	if err != nil {
		L.Error(ctx, err, "failed to start http listener")
		os.Exit(1)
	}
	defer func() { _ = apiHTTPStop(context.Background()) }()

	// admin/ops listener for metrics, health checks and pprof; bind it to
	// an internal-only interface in deployment
	opsHTTPStop, err := opshttp.Start(ctx, L, opshttp.Options{
		Port:        conf.AdminPort,
		Metrics:     m.Handler(),
		EnablePprof: conf.EnablePprof,
		Health:      probe.Static(true, ""),
		Readiness:   readiness,
	})
	if err != nil {
		L.Error(ctx, err, "failed to start ops http listener")
		os.Exit(1)
	}
	defer func() { _ = opsHTTPStop(context.Background()) }()

	// notify systemd that we started successfully if started under systemd
	if err := notifySystemd(); err != nil {
		L.Warn(ctx, "failed to notify systemd of readiness", "error", err)
	}

	// wait for ctrl+c / sigterm
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	L.Info(context.Background(), "shutdown signal received")

	// fail readiness to drain connections before closing listeners
	gateProbe.Set("draining")
	L.Info(context.Background(), "shutdown gate closed, draining")

	forceCh := make(chan os.Signal, 1)
	signal.Notify(forceCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-time.After(drainPeriod):
		L.Info(context.Background(), "drain period complete")
	case <-forceCh:
		L.Warn(context.Background(), "second signal received, skipping drain")
	}
	signal.Stop(forceCh)

	if err := apiHTTPStop(shutdownCtx); err != nil {
		L.Error(context.Background(), err, "http server shutdown")
	}
	if err := opsHTTPStop(shutdownCtx); err != nil {
		L.Error(context.Background(), err, "ops http server shutdown")
	}
	if err := shutdownOTEL(shutdownCtx); err != nil {
		L.Error(context.Background(), err, "otel shutdown")
	}

	stopProf()

	L.Info(context.Background(), "shutdown complete")
	os.Exit(0)
}

const drainPeriod = 15 * time.Second

func notifySystemd() error {
	// systemd sets NOTIFY_SOCKET to a unix socket path under type=notify
	addr := os.Getenv("NOTIFY_SOCKET")
	if addr == "" {
		return fmt.Errorf("NOTIFY_SOCKET not set, skipping systemd notify")
	}
	conn, err := net.Dial("unixgram", addr)
	if err != nil {
		return fmt.Errorf("systemd notify failed: dial failed: %w", err)
	}
	conn.Write([]byte("READY=1"))
	if err := conn.Close(); err != nil {
		return fmt.Errorf("systemd notify failed: close failed: %w", err)
	}
	return nil
}
