package scrape

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/entropy-jam/kalitraf-current/internal/domain"
	"github.com/entropy-jam/kalitraf-current/internal/metrics"
)

const (
	// DefaultBaseURL is the live CHP incident page.
	DefaultBaseURL = "https://cad.chp.ca.gov/Traffic.aspx"

	userAgent = "Mozilla/5.0 (compatible; kalitraf/1.0)"

	centerField = "ddlComCenter"
	submitField = "btnCCGo"

	breakerFailureThreshold = 5
	breakerOpenDuration     = 2 * time.Minute
)

// Fetcher implements domain.Fetcher against the CHP page.
//
// A shared rate limiter keeps the outbound request rate polite across all
// sources; a per-source circuit breaker stops a persistently failing center
// from consuming its fetch slot while open.
type Fetcher struct {
	client  *http.Client
	baseURL string
	limiter *rate.Limiter

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewFetcher creates a CHP fetcher. timeout bounds each individual fetch
// (both HTTP round trips plus parsing); requestsPerSecond throttles the
// aggregate outbound rate across sources.
func NewFetcher(baseURL string, timeout time.Duration, requestsPerSecond float64) *Fetcher {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Fetcher{
		client:   &http.Client{Timeout: timeout},
		baseURL:  baseURL,
		limiter:  rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// Fetch retrieves the current incident set for one source. Errors are
// opaque to callers: network, HTTP status, parse failure and an open
// circuit all mean "this source failed this cycle".
func (f *Fetcher) Fetch(ctx context.Context, source domain.Source) ([]domain.Incident, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	result, err := f.breaker(source.Code).Execute(func() (any, error) {
		return f.fetchOnce(ctx, source)
	})
	if err != nil {
		metrics.FetchErrorsTotal.WithLabelValues(source.Code).Inc()
		return nil, err
	}
	return result.([]domain.Incident), nil
}

func (f *Fetcher) fetchOnce(ctx context.Context, source domain.Source) ([]domain.Incident, error) {
	start := time.Now()
	defer func() {
		metrics.FetchDuration.WithLabelValues(source.Code).Observe(time.Since(start).Seconds())
	}()

	form, err := f.loadForm(ctx)
	if err != nil {
		return nil, fmt.Errorf("load form: %w", err)
	}

	form.Set(centerField, source.Code)
	form.Set(submitField, "OK")

	body, err := f.submitForm(ctx, form)
	if err != nil {
		return nil, fmt.Errorf("select center %s: %w", source.Code, err)
	}
	defer body.Close()

	incidents, err := ParseIncidents(body)
	if err != nil {
		return nil, fmt.Errorf("parse incidents for %s: %w", source.Code, err)
	}
	return incidents, nil
}

// loadForm GETs the page and harvests every hidden input (ASP.NET
// viewstate, event validation) into a form value set.
func (f *Fetcher) loadForm(ctx context.Context) (url.Values, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	doc.Find(`input[type="hidden"]`).Each(func(_ int, sel *goquery.Selection) {
		name, ok := sel.Attr("name")
		if !ok || name == "" {
			return
		}
		value, _ := sel.Attr("value")
		form.Set(name, value)
	})

	return form, nil
}

func (f *Fetcher) submitForm(ctx context.Context, form url.Values) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

func (f *Fetcher) breaker(code string) *gobreaker.CircuitBreaker {
	f.mu.Lock()
	defer f.mu.Unlock()

	cb, ok := f.breakers[code]
	if !ok {
		cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "fetch-" + code,
			Timeout: breakerOpenDuration,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= breakerFailureThreshold
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				slog.Warn("Fetch circuit state changed", "breaker", name, "from", from.String(), "to", to.String())
				metrics.FetchCircuitState.WithLabelValues(code).Set(float64(to))
			},
		})
		f.breakers[code] = cb
	}
	return cb
}
