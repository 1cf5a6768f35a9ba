// Package publicip resolves the machine's public IP address by asking
// several IP echo services in parallel.
package publicip

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	pkgerrors "nodectl/pkg/errors"
)

// DefaultServices are queried when Config.Services is empty.
var DefaultServices = []string{
	"http://icanhazip.com/",
	"http://ident.me/",
	"http://ifconfig.co/x-real-ip",
	"http://ifconfig.io/ip",
}

const (
	// DefaultTimeout bounds each service request.
	DefaultTimeout = 600 * time.Millisecond

	defaultUserAgent = "curl/8.5.0"

	// Echo services answer with a bare address; anything longer is not one.
	maxBodySize = 256
)

var errResolved = errors.New("public ip resolved")

// Config holds configuration for a Resolver.
type Config struct {
	Services  []string
	Timeout   time.Duration
	UserAgent string
	Client    *http.Client
}

// Answer is a successful resolution.
type Answer struct {
	IP      string
	Service string
	Elapsed time.Duration
}

// Resolver queries IP echo services.
type Resolver struct {
	client    *http.Client
	services  []string
	timeout   time.Duration
	userAgent string
}

// NewResolver creates a Resolver, filling unset fields with defaults.
func NewResolver(cfg Config) *Resolver {
	if len(cfg.Services) == 0 {
		cfg.Services = DefaultServices
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{
			Transport: &http.Transport{
				Proxy:             http.ProxyFromEnvironment,
				DisableKeepAlives: true,
			},
		}
	}
	return &Resolver{
		client:    cfg.Client,
		services:  append([]string(nil), cfg.Services...),
		timeout:   cfg.Timeout,
		userAgent: cfg.UserAgent,
	}
}

// Services returns the configured service URLs.
func (r *Resolver) Services() []string {
	return append([]string(nil), r.services...)
}

// Resolve returns the public IP reported by the first service to answer.
func (r *Resolver) Resolve(ctx context.Context) (string, error) {
	answer, err := r.ResolveDetailed(ctx)
	if err != nil {
		return "", err
	}
	return answer.IP, nil
}

// ResolveDetailed queries every service in parallel. The first valid
// answer wins and cancels the requests still in flight. It fails only when
// every service fails, with a *pkgerrors.LookupError listing each failure.
func (r *Resolver) ResolveDetailed(ctx context.Context) (*Answer, error) {
	if len(r.services) == 0 {
		return nil, pkgerrors.ErrNoServices
	}

	g, gctx := errgroup.WithContext(ctx)
	start := time.Now()

	var (
		mu     sync.Mutex
		answer *Answer
		errs   = make([]error, 0, len(r.services))
	)
	for _, service := range r.services {
		g.Go(func() error {
			ip, err := r.Lookup(gctx, service)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return nil
			}
			if answer == nil {
				answer = &Answer{IP: ip, Service: service, Elapsed: time.Since(start)}
			}
			// Ends the group and cancels the lookups still in flight.
			return errResolved
		})
	}
	if err := g.Wait(); errors.Is(err, errResolved) {
		return answer, nil
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return nil, &pkgerrors.LookupError{Errs: errs}
}

// Lookup queries a single service with the per-service timeout.
func (r *Resolver) Lookup(ctx context.Context, service string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, service, nil)
	if err != nil {
		return "", &pkgerrors.ServiceError{URL: service, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("User-Agent", r.userAgent)
	req.Header.Set("Accept", "text/plain")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", &pkgerrors.ServiceError{URL: service, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &pkgerrors.ServiceError{URL: service, Err: &pkgerrors.HTTPError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			URL:        service,
		}}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", &pkgerrors.ServiceError{URL: service, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	ip, err := ParseIP(string(body))
	if err != nil {
		return "", &pkgerrors.ServiceError{URL: service, Err: err}
	}
	return ip, nil
}

// ParseIP trims an echo service reply and validates it as an IPv4 or IPv6
// address, returning its canonical form.
func ParseIP(reply string) (string, error) {
	s := strings.TrimSpace(reply)
	ip := net.ParseIP(s)
	if ip == nil {
		if len(s) > 64 {
			s = s[:64]
		}
		return "", fmt.Errorf("%w: %q", pkgerrors.ErrInvalidIP, s)
	}
	return ip.String(), nil
}
