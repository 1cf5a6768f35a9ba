// Package speedtest measures latency and throughput against a
// Cloudflare-style speed test server within a fixed time budget.
//
// The server must expose:
//
//	GET  /cdn-cgi/trace     key=value lines with the client ip and colo
//	GET  /__down?bytes=N    a body of N bytes
//	POST /__up              accepts and discards the request body
package speedtest

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	pkgerrors "nodectl/pkg/errors"
)

const (
	// DefaultServer is Cloudflare's public speed test endpoint.
	DefaultServer = "https://speed.cloudflare.com"
	// DefaultMaxTime bounds a whole run.
	DefaultMaxTime = 5 * time.Second

	defaultPingCount     = 10
	defaultDownloadBytes = 25_000_000
	defaultUploadBytes   = 10_000_000
	defaultUserAgent     = "nodectl/1.0"

	// Share of MaxTime given to the latency and download phases; upload
	// gets whatever is left.
	pingShare     = 0.2
	downloadShare = 0.4
)

// Phase names reported to Config.Progress and in errors.
const (
	PhaseMeta     = "meta"
	PhasePing     = "ping"
	PhaseDownload = "download"
	PhaseUpload   = "upload"
)

// Config holds configuration for a speed test.
type Config struct {
	Server        string
	MaxTime       time.Duration
	PingCount     int
	DownloadBytes int64
	UploadBytes   int64
	// RateLimitMB caps the download rate in MiB/s. Zero means unlimited.
	RateLimitMB float64
	UserAgent   string
	Client      *http.Client
	// Progress is called when a phase starts.
	Progress func(phase string)
}

// Ping summarises the unloaded latency samples.
type Ping struct {
	LatencyMS float64 `json:"latency_ms"`
	JitterMS  float64 `json:"jitter_ms"`
	Samples   int     `json:"samples"`
}

// Throughput describes one transfer direction.
type Throughput struct {
	Bandwidth float64       `json:"bandwidth"` // bytes per second
	Bytes     int64         `json:"bytes"`
	Elapsed   time.Duration `json:"elapsed"`
}

// Mbps returns the bandwidth in megabits per second.
func (t Throughput) Mbps() float64 {
	return t.Bandwidth * 8 / 1_000_000
}

// Server identifies where the test ran.
type Server struct {
	Host     string `json:"host"`
	Colo     string `json:"colo,omitempty"`
	Location string `json:"location,omitempty"`
}

// Result is the outcome of a complete run.
type Result struct {
	RunID      string     `json:"run_id"`
	Timestamp  time.Time  `json:"timestamp"`
	Ping       Ping       `json:"ping"`
	Download   Throughput `json:"download"`
	Upload     Throughput `json:"upload"`
	Server     Server     `json:"server"`
	ExternalIP string     `json:"external_ip,omitempty"`
}

// Tester runs speed tests against one server.
type Tester struct {
	config Config
	client *http.Client
	base   *url.URL
}

// NewTester creates a new Tester, filling unset fields with defaults.
func NewTester(cfg Config) (*Tester, error) {
	if cfg.Server == "" {
		cfg.Server = DefaultServer
	}
	if cfg.MaxTime <= 0 {
		cfg.MaxTime = DefaultMaxTime
	}
	if cfg.PingCount <= 0 {
		cfg.PingCount = defaultPingCount
	}
	if cfg.DownloadBytes <= 0 {
		cfg.DownloadBytes = defaultDownloadBytes
	}
	if cfg.UploadBytes <= 0 {
		cfg.UploadBytes = defaultUploadBytes
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Transport: newTransport()}
	}

	base, err := url.Parse(cfg.Server)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid speed test server %q", cfg.Server)
	}

	return &Tester{config: cfg, client: cfg.Client, base: base}, nil
}

// Run performs a speed test with cfg. See Tester.Run.
func Run(ctx context.Context, cfg Config) (*Result, error) {
	t, err := NewTester(cfg)
	if err != nil {
		return nil, err
	}
	return t.Run(ctx)
}

// Run measures latency, download and upload within MaxTime. Running out of
// time ends a phase early and keeps what was measured; any request or
// server error aborts the run and is returned.
func (t *Tester) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	maxTime := t.config.MaxTime

	runCtx, cancel := context.WithTimeout(ctx, maxTime)
	defer cancel()

	result := &Result{
		RunID:     uuid.NewString(),
		Timestamp: start,
		Server:    Server{Host: t.base.Host},
	}

	// Each measure function returns what it has, without error, once its
	// context runs out; a cancelled caller context is checked here.
	t.progress(PhaseMeta)
	trace, err := t.fetchTrace(runCtx)
	if err != nil {
		return nil, fail(ctx, PhaseMeta, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result.ExternalIP = trace["ip"]
	result.Server.Colo = trace["colo"]
	result.Server.Location = trace["loc"]

	t.progress(PhasePing)
	pingCtx, pingCancel := context.WithDeadline(runCtx, start.Add(scale(maxTime, pingShare)))
	result.Ping, err = t.measureLatency(pingCtx)
	pingCancel()
	if err != nil {
		return nil, fail(ctx, PhasePing, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.progress(PhaseDownload)
	downCtx, downCancel := context.WithDeadline(runCtx, start.Add(scale(maxTime, pingShare+downloadShare)))
	result.Download, err = t.measureDownload(downCtx, result.RunID)
	downCancel()
	if err != nil {
		return nil, fail(ctx, PhaseDownload, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.progress(PhaseUpload)
	result.Upload, err = t.measureUpload(runCtx, result.RunID)
	if err != nil {
		return nil, fail(ctx, PhaseUpload, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func fail(parent context.Context, phase string, err error) error {
	if perr := parent.Err(); perr != nil {
		return perr
	}
	return &pkgerrors.SpeedTestError{Phase: phase, Err: err}
}

func scale(d time.Duration, share float64) time.Duration {
	return time.Duration(float64(d) * share)
}

// expired reports whether err came from ctx running out. The transport
// does not always wrap the context error, so any failure after the
// deadline counts.
func expired(ctx context.Context, err error) bool {
	return err != nil && ctx.Err() != nil
}

func (t *Tester) progress(phase string) {
	if t.config.Progress != nil {
		t.config.Progress(phase)
	}
}

func (t *Tester) endpoint(path string, query url.Values) string {
	u := *t.base
	u.Path = path
	u.RawQuery = query.Encode()
	return u.String()
}

func (t *Tester) newRequest(ctx context.Context, method, target string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", t.config.UserAgent)
	return req, nil
}

func checkStatus(resp *http.Response, target string) error {
	if resp.StatusCode != http.StatusOK {
		return &pkgerrors.HTTPError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			URL:        target,
		}
	}
	return nil
}
