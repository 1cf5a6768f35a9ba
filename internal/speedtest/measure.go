package speedtest

import (
	"bufio"
	"context"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/VividCortex/ewma"
	"golang.org/x/time/rate"
)

const (
	readBufferSize = 8192
	sampleInterval = 100 * time.Millisecond
	maxTraceSize   = 4096

	uploadChunkSize = 2_000_000
)

func newTransport() *http.Transport {
	return &http.Transport{
		Proxy:              http.ProxyFromEnvironment,
		DisableCompression: true,
		ForceAttemptHTTP2:  true,
	}
}

// fetchTrace reads the key=value lines served at /cdn-cgi/trace.
func (t *Tester) fetchTrace(ctx context.Context) (map[string]string, error) {
	target := t.endpoint("/cdn-cgi/trace", nil)
	req, err := t.newRequest(ctx, http.MethodGet, target)
	if err != nil {
		return nil, err
	}

	resp, err := t.client.Do(req)
	if err != nil {
		if expired(ctx, err) {
			return nil, nil
		}
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, target); err != nil {
		return nil, err
	}

	trace, err := ParseTrace(io.LimitReader(resp.Body, maxTraceSize))
	if err != nil && !expired(ctx, err) {
		return nil, err
	}
	return trace, nil
}

// ParseTrace parses a trace body into a map. Lines without '=' are skipped.
func ParseTrace(r io.Reader) (map[string]string, error) {
	trace := make(map[string]string)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok || key == "" {
			continue
		}
		trace[key] = value
	}
	return trace, scanner.Err()
}

// measureLatency times empty downloads. The first request warms the
// connection and is not counted.
func (t *Tester) measureLatency(ctx context.Context) (Ping, error) {
	target := t.endpoint("/__down", url.Values{"bytes": {"0"}})

	var samples []float64
	for i := 0; i <= t.config.PingCount; i++ {
		req, err := t.newRequest(ctx, http.MethodGet, target)
		if err != nil {
			return Ping{}, err
		}

		start := time.Now()
		resp, err := t.client.Do(req)
		if err != nil {
			if expired(ctx, err) {
				break
			}
			return Ping{}, err
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		elapsed := time.Since(start)

		if err := checkStatus(resp, target); err != nil {
			return Ping{}, err
		}
		if i == 0 {
			continue
		}
		samples = append(samples, float64(elapsed.Microseconds())/1000)
	}

	latency, jitter := summarize(samples)
	return Ping{LatencyMS: latency, JitterMS: jitter, Samples: len(samples)}, nil
}

// summarize returns the median of the samples and the mean absolute
// difference between consecutive samples, both rounded to 0.1.
func summarize(samples []float64) (median, jitter float64) {
	n := len(samples)
	if n == 0 {
		return 0, 0
	}

	if n >= 2 {
		var sum float64
		for i := 1; i < n; i++ {
			sum += math.Abs(samples[i] - samples[i-1])
		}
		jitter = sum / float64(n-1)
	}

	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)
	if n%2 == 0 {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	} else {
		median = sorted[n/2]
	}

	return math.Round(median*10) / 10, math.Round(jitter*10) / 10
}

// measureDownload streams /__down until the body ends or ctx runs out,
// smoothing per-slice byte counts with an EWMA.
func (t *Tester) measureDownload(ctx context.Context, measID string) (Throughput, error) {
	target := t.endpoint("/__down", url.Values{
		"bytes":  {strconv.FormatInt(t.config.DownloadBytes, 10)},
		"measId": {measID},
	})
	req, err := t.newRequest(ctx, http.MethodGet, target)
	if err != nil {
		return Throughput{}, err
	}

	start := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		if expired(ctx, err) {
			return Throughput{}, nil
		}
		return Throughput{}, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, target); err != nil {
		return Throughput{}, err
	}

	var limiter *rate.Limiter
	if t.config.RateLimitMB > 0 {
		limit := t.config.RateLimitMB * 1024 * 1024
		burst := int(limit)
		if burst < readBufferSize {
			burst = readBufferSize
		}
		limiter = rate.NewLimiter(rate.Limit(limit), burst)
	}

	var (
		buffer     = make([]byte, readBufferSize)
		read       int64
		sliceStart = start
		sliceRead  int64
		slices     int
		avg        = ewma.NewMovingAverage()
	)

	for {
		n, err := resp.Body.Read(buffer)
		read += int64(n)
		sliceRead += int64(n)

		if now := time.Now(); now.Sub(sliceStart) >= sampleInterval {
			avg.Add(float64(sliceRead) / now.Sub(sliceStart).Seconds())
			slices++
			sliceStart, sliceRead = now, 0
		}

		if err != nil {
			if err == io.EOF || expired(ctx, err) {
				break
			}
			return Throughput{}, err
		}

		if limiter != nil && n > 0 {
			if err := limiter.WaitN(ctx, n); err != nil {
				break
			}
		}
	}

	elapsed := time.Since(start)
	result := Throughput{Bytes: read, Elapsed: elapsed}
	switch {
	case slices > 0:
		result.Bandwidth = avg.Value()
	case elapsed > 0:
		result.Bandwidth = float64(read) / elapsed.Seconds()
	}
	return result, nil
}

// measureUpload posts UploadBytes of zeros to /__up in requests of at most
// uploadChunkSize bytes. Only requests the server answered are counted, so
// a request cut short by the time budget adds nothing.
func (t *Tester) measureUpload(ctx context.Context, measID string) (Throughput, error) {
	target := t.endpoint("/__up", url.Values{"measId": {measID}})

	var (
		start = time.Now()
		acked int64
		last  time.Duration
	)
	for remaining := t.config.UploadBytes; remaining > 0; {
		size := min(remaining, uploadChunkSize)
		sent, err := t.uploadChunk(ctx, target, size)
		if err != nil {
			if expired(ctx, err) {
				break
			}
			return Throughput{}, err
		}
		acked += sent
		last = time.Since(start)
		remaining -= size
	}

	result := Throughput{Bytes: acked, Elapsed: last}
	if last > 0 {
		result.Bandwidth = float64(acked) / last.Seconds()
	}
	return result, nil
}

// uploadChunk posts size zero bytes and returns how many the transport sent
// once the response has arrived.
func (t *Tester) uploadChunk(ctx context.Context, target string, size int64) (int64, error) {
	body := &countingReader{r: io.LimitReader(zeroReader{}, size)}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, body)
	if err != nil {
		return 0, err
	}
	req.ContentLength = size
	req.Header.Set("User-Agent", t.config.UserAgent)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := t.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return 0, err
	}

	if err := checkStatus(resp, target); err != nil {
		return 0, err
	}
	return body.Count(), nil
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	clear(p)
	return len(p), nil
}

// countingReader counts bytes handed to the transport.
type countingReader struct {
	r io.Reader
	n atomic.Int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n.Add(int64(n))
	return n, err
}

func (c *countingReader) Count() int64 {
	return c.n.Load()
}
