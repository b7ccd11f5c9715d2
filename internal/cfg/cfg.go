package cfg

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/kestrelworks/inkwell/internal/log"
)

type App struct {
	LogJSON         bool
	LogLevel        string
	StacktraceLevel string

	HTTPPort  int
	AdminPort int

	EnablePprof     bool
	EnablePyroscope bool
	EnableTracing   bool
	PyroServer      string
	PyroTenantID    string
	OTLPEndpoint    string
	TraceSample     float64

	ContentRoot          string
	ContentMaxFileBytes  int64
	ContentMaxTotalBytes int64

	GitRepoRoot     string
	GitBackendPath  string
	GitMaxBodyBytes int64
	GitTimeout      time.Duration

	WebhookURLs    string // comma separated
	WebhookSecret  string // literal or env:VAR
	WebhookTimeout time.Duration

	AdminToken string // literal or env:VAR

	AssetsS3Bucket      string
	AssetsS3Prefix      string
	AssetsS3Region      string
	AssetsS3Endpoint    string
	AssetsPublicBaseURL string

	RateLimitRPS   float64
	RateLimitBurst int
	TrustedHops    int
}

// Register binds all config fields to the given FlagSet with defaults inline
func Register(fs *flag.FlagSet, c *App) {
	fs.BoolVar(&c.LogJSON, "log-json", true, "JSON logs (true) or logfmt (false)")
	fs.StringVar(&c.LogLevel, "log-level", "info", "debug|info|warn|error")
	fs.StringVar(&c.StacktraceLevel, "stacktrace-level", "error", "debug|info|warn|error")
	fs.IntVar(&c.HTTPPort, "http-port", 8080, "listen TCP port (1..65535)")
	fs.IntVar(&c.AdminPort, "admin-port", 9000, "admin listen TCP port (1..65535)")
	fs.BoolVar(&c.EnablePprof, "enable-pprof", true, "Enable pprof profiling (on admin port only)")
	fs.BoolVar(&c.EnableTracing, "enable-tracing", false, "Enable OTLP tracing and push to otlp-endpoint")
	fs.BoolVar(&c.EnablePyroscope, "enable-pyroscope", false, "Enable pushing Pyroscope data to server set in -pyro-server")
	fs.StringVar(&c.PyroServer, "pyro-server", "", "pyroscope server url to push to")
	fs.StringVar(&c.PyroTenantID, "pyro-tenant", "", "tenant (x-scope-orgid) to use for pyro-server")
	fs.StringVar(&c.OTLPEndpoint, "otlp-endpoint", "", "OTLP endpoint to push to (gRPC) (host:port)")
	fs.Float64Var(&c.TraceSample, "trace-sample", 0.0, "trace sampling ratio (0..1)")

	fs.StringVar(&c.ContentRoot, "content-root", "", "directory holding the content tree (required)")
	fs.Int64Var(&c.ContentMaxFileBytes, "content-max-file-bytes", 10<<20, "per-file size cap during content loads")
	fs.Int64Var(&c.ContentMaxTotalBytes, "content-max-total-bytes", 256<<20, "cumulative size cap during content loads")

	fs.StringVar(&c.GitRepoRoot, "git-repo-root", "", "git repository served over smart HTTP (empty disables /git)")
	fs.StringVar(&c.GitBackendPath, "git-backend-path", "", "explicit path to git-http-backend (empty = autodetect)")
	fs.Int64Var(&c.GitMaxBodyBytes, "git-max-body-bytes", 100<<20, "max request body for git endpoints")
	fs.DurationVar(&c.GitTimeout, "git-timeout", 300*time.Second, "kill deadline for a git backend process")

	fs.StringVar(&c.WebhookURLs, "webhook-urls", "", "comma-separated webhook targets notified after a push")
	fs.StringVar(&c.WebhookSecret, "webhook-secret", "", "HMAC secret for webhook signatures, literal or env:VAR")
	fs.DurationVar(&c.WebhookTimeout, "webhook-timeout", 10*time.Second, "per-target webhook delivery timeout")

	fs.StringVar(&c.AdminToken, "admin-token", "", "admin bearer/basic token, literal or env:VAR (empty disables elevated access)")

	fs.StringVar(&c.AssetsS3Bucket, "assets-s3-bucket", "", "S3 bucket for uploaded assets (empty disables asset endpoints)")
	fs.StringVar(&c.AssetsS3Prefix, "assets-s3-prefix", "assets", "S3 key prefix for uploaded assets")
	fs.StringVar(&c.AssetsS3Region, "assets-s3-region", "us-east-2", "S3 region for the assets bucket")
	fs.StringVar(&c.AssetsS3Endpoint, "assets-s3-endpoint", "", "S3-compatible endpoint override (R2, minio)")
	fs.StringVar(&c.AssetsPublicBaseURL, "assets-public-base-url", "", "public base URL assets are served from")

	fs.Float64Var(&c.RateLimitRPS, "rate-limit-rps", 10, "per-client-IP request rate for the API (0 disables)")
	fs.IntVar(&c.RateLimitBurst, "rate-limit-burst", 20, "per-client-IP burst for the API")
	fs.IntVar(&c.TrustedHops, "trusted-hops", 0, "trusted reverse proxies in front of this server")
}

// FillFromEnv sets any flag not explicitly passed on the CLI from
// environment variables. Flag "foo-bar" maps to PREFIX_FOO_BAR.
// Precedence: cli flag > env var > default.
func FillFromEnv(fs *flag.FlagSet, prefix string, logf func(string, ...any)) {
	explicit := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	fs.VisitAll(func(f *flag.Flag) {
		key := prefix + strings.ReplaceAll(strings.ToUpper(f.Name), "-", "_")
		envVal, envSet := os.LookupEnv(key)
		if !envSet {
			return
		}
		if explicit[f.Name] {
			if logf != nil {
				logf("flag -%s: cli value %q overrides env %s=%q", f.Name, f.Value.String(), key, envVal)
			}
			return
		}
		prev := f.Value.String()
		if err := fs.Set(f.Name, envVal); err != nil {
			fs.Set(f.Name, prev)
			if logf != nil {
				logf("flag -%s: ignoring invalid env %s=%q: %v", f.Name, key, envVal, err)
			}
		}
	})
}

// Validate checks that config values are within expected ranges and formats.
// Returns an error describing all invalid fields, or nil if all valid.
func Validate(c App) error {
	var errs []error

	// Ports
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.HTTPPort))
	}
	if c.AdminPort < 1 || c.AdminPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid ADMIN_PORT %d (must be 1..65535)", c.AdminPort))
	}
	if c.AdminPort == c.HTTPPort {
		errs = append(errs, fmt.Errorf("ADMIN_PORT and HTTP_PORT must differ (both %d)", c.HTTPPort))
	}

	// Log levels
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err))
	}
	if c.StacktraceLevel != "" {
		if _, err := log.ParseLevel(c.StacktraceLevel); err != nil {
			errs = append(errs, fmt.Errorf("invalid STACKTRACE_LEVEL %q: %w", c.StacktraceLevel, err))
		}
	}

	// Tracing sample
	if c.TraceSample < 0 || c.TraceSample > 1 {
		errs = append(errs, fmt.Errorf("invalid TRACE_SAMPLE %.3f (must be 0..1)", c.TraceSample))
	}

	// Pyroscope (URL and scheme)
	if c.EnablePyroscope {
		if c.PyroServer == "" {
			errs = append(errs, fmt.Errorf("PYRO_SERVER required when ENABLE_PYROSCOPE=true"))
		} else if u, err := url.Parse(c.PyroServer); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("PYRO_SERVER must be a URL (got %q)", c.PyroServer))
		}
	}

	// OTLP tracing (grpc exporter wants host:port, no scheme)
	if c.EnableTracing {
		if c.OTLPEndpoint == "" {
			errs = append(errs, fmt.Errorf("OTLP_ENDPOINT required when ENABLE_TRACING=true"))
		} else if _, _, err := net.SplitHostPort(c.OTLPEndpoint); err != nil {
			errs = append(errs, fmt.Errorf("OTLP_ENDPOINT must be host:port (got %q): %v", c.OTLPEndpoint, err))
		}
	}

	// Content tree
	if c.ContentRoot == "" {
		errs = append(errs, fmt.Errorf("CONTENT_ROOT is required"))
	}
	if c.ContentMaxFileBytes < 1 {
		errs = append(errs, fmt.Errorf("CONTENT_MAX_FILE_BYTES must be positive (got %d)", c.ContentMaxFileBytes))
	}
	if c.ContentMaxTotalBytes < c.ContentMaxFileBytes {
		errs = append(errs, fmt.Errorf("CONTENT_MAX_TOTAL_BYTES %d must be >= CONTENT_MAX_FILE_BYTES %d",
			c.ContentMaxTotalBytes, c.ContentMaxFileBytes))
	}

	// Git bridge
	if c.GitRepoRoot != "" {
		if c.GitMaxBodyBytes < 1 {
			errs = append(errs, fmt.Errorf("GIT_MAX_BODY_BYTES must be positive (got %d)", c.GitMaxBodyBytes))
		}
		if c.GitTimeout < time.Second {
			errs = append(errs, fmt.Errorf("GIT_TIMEOUT must be at least 1s (got %v)", c.GitTimeout))
		}
		if c.AdminToken == "" {
			errs = append(errs, fmt.Errorf("ADMIN_TOKEN is required when GIT_REPO_ROOT is set (git endpoints are always authenticated)"))
		}
	}

	// Webhooks
	for _, raw := range SplitWebhookURLs(c.WebhookURLs) {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("WEBHOOK_URLS entry %q must be an http(s) URL", raw))
		}
	}
	if c.WebhookTimeout < time.Second {
		errs = append(errs, fmt.Errorf("WEBHOOK_TIMEOUT must be at least 1s (got %v)", c.WebhookTimeout))
	}

	// Assets
	if c.AssetsS3Bucket != "" && c.AssetsS3Region == "" && c.AssetsS3Endpoint == "" {
		errs = append(errs, fmt.Errorf("ASSETS_S3_REGION or ASSETS_S3_ENDPOINT required when ASSETS_S3_BUCKET is set"))
	}

	// Rate limiting
	if c.RateLimitRPS < 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_RPS must be >= 0 (got %g)", c.RateLimitRPS))
	}
	if c.RateLimitRPS > 0 && c.RateLimitBurst < 1 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_BURST must be positive when rate limiting is on (got %d)", c.RateLimitBurst))
	}
	if c.TrustedHops < 0 {
		errs = append(errs, fmt.Errorf("TRUSTED_HOPS must be >= 0 (got %d)", c.TrustedHops))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// SplitWebhookURLs parses the comma-separated target list, dropping empty
// entries.
func SplitWebhookURLs(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
