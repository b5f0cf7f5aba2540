package dataset

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/avast/retry-go/v5"
)

// Supported dataset formats.
const (
	FormatJSON    = "json"
	FormatParquet = "parquet"
	FormatProm    = "prom"
)

// Defaults applied to zero-valued Source fields.
const (
	DefaultFetchAttempts = 3
	DefaultFetchTimeout  = 10 * time.Second
	DefaultFetchBackoff  = 200 * time.Millisecond
)

// Source describes where and how to load the dataset.
type Source struct {
	// Path is a filesystem path or an http(s) URL.
	Path string

	// Format is one of json | parquet | prom. Empty infers it from the
	// extension of Path.
	Format string

	// Attempts bounds the number of fetches for remote sources.
	Attempts int

	// Timeout bounds each remote fetch attempt.
	Timeout time.Duration

	// Backoff is the base delay between remote fetch attempts.
	Backoff time.Duration
}

// Load reads the dataset described by src and returns an immutable Store.
// A well-formed source with zero records yields an empty Store and no error;
// callers decide how to surface that.
func Load(ctx context.Context, src Source) (*Store, error) {
	if src.Path == "" {
		return nil, fmt.Errorf("dataset: path is required")
	}

	format := src.Format
	if format == "" {
		f, err := InferFormat(src.Path)
		if err != nil {
			return nil, err
		}
		format = f
	}

	var (
		records []Record
		err     error
		origin  = src.Path
	)
	if isRemote(src.Path) {
		var body []byte
		body, err = fetch(ctx, src)
		if err != nil {
			return nil, err
		}
		records, err = decode(format, bytes.NewReader(body), int64(len(body)))
	} else {
		origin = resolvePath(src.Path)
		records, err = loadFile(origin, format)
	}
	if err != nil {
		return nil, err
	}

	slog.Info("dataset: loaded", "source", origin, "format", format, "records", len(records))
	return New(records, origin), nil
}

// InferFormat maps the extension of p (a path or URL) to a dataset format.
func InferFormat(p string) (string, error) {
	if u, err := url.Parse(p); err == nil && isRemote(p) {
		p = u.Path
	}
	switch strings.ToLower(path.Ext(p)) {
	case ".json":
		return FormatJSON, nil
	case ".parquet":
		return FormatParquet, nil
	case ".prom", ".txt":
		return FormatProm, nil
	default:
		return "", fmt.Errorf("dataset: cannot infer format of %q: set dataset.format", p)
	}
}

func isRemote(p string) bool {
	return strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://")
}

// resolvePath returns the first existing candidate for a relative path: as
// given, under api/, then next to the executable. Absolute paths and misses
// are returned unchanged so the open error names the configured path.
func resolvePath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	candidates := []string{p, filepath.Join("api", p)}
	if exe, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(exe), p))
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return p
}

func loadFile(p, format string) ([]Record, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("dataset: open %q: %w", p, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("dataset: stat %q: %w", p, err)
	}
	return decode(format, f, st.Size())
}

// decode dispatches to the format-specific decoder and rejects records with
// non-finite values. r must also implement io.ReaderAt for parquet input.
func decode(format string, r io.Reader, size int64) ([]Record, error) {
	var (
		records []Record
		err     error
	)
	switch format {
	case FormatJSON:
		records, err = decodeJSON(r)
	case FormatProm:
		records, err = decodeProm(r)
	case FormatParquet:
		ra, ok := r.(io.ReaderAt)
		if !ok {
			return nil, fmt.Errorf("dataset: parquet input is not seekable")
		}
		records, err = decodeParquet(ra, size)
	default:
		return nil, fmt.Errorf("dataset: unknown format %q", format)
	}
	if err != nil {
		return nil, err
	}
	if err := checkFinite(records); err != nil {
		return nil, err
	}
	return records, nil
}

// checkFinite fails on the first record whose latency or uptime is NaN or
// infinite. The whole load fails so the server never serves a partial dataset.
func checkFinite(records []Record) error {
	for i, r := range records {
		switch {
		case math.IsNaN(r.LatencyMs) || math.IsInf(r.LatencyMs, 0):
			return fmt.Errorf("dataset: non-finite latency_ms in region %q (record %d)", r.Region, i)
		case math.IsNaN(r.UptimePct) || math.IsInf(r.UptimePct, 0):
			return fmt.Errorf("dataset: non-finite uptime_pct in region %q (record %d)", r.Region, i)
		}
	}
	return nil
}

// fetch downloads a remote dataset, retrying with exponential backoff.
func fetch(ctx context.Context, src Source) ([]byte, error) {
	attempts := src.Attempts
	if attempts <= 0 {
		attempts = DefaultFetchAttempts
	}
	timeout := src.Timeout
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	backoff := src.Backoff
	if backoff <= 0 {
		backoff = DefaultFetchBackoff
	}

	client := &http.Client{Timeout: timeout}
	var body []byte

	r := retry.New(
		retry.Context(ctx),
		retry.Attempts(uint(attempts)),
		retry.Delay(backoff),
		retry.DelayType(retry.BackOffDelay),
	)
	err := r.Do(func() error {
		reqCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, src.Path, nil)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		resp, err := client.Do(req)
		if err != nil {
			slog.Warn("dataset: fetch failed", "url", src.Path, "err", err)
			return fmt.Errorf("http get: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			slog.Warn("dataset: fetch failed", "url", src.Path, "status", resp.StatusCode)
			return fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("dataset: fetch %q: %w", src.Path, err)
	}
	return body, nil
}
