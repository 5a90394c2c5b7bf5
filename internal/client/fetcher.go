package client

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cutx/catalog/internal/config"
	"cutx/catalog/internal/proxy"

	log "github.com/sirupsen/logrus"
	"go.uber.org/ratelimit"
	"resty.dev/v3"
)

// htmlFetcher downloads the rendered HTML of a supplier page.
type htmlFetcher interface {
	FetchHTML(ctx context.Context, url string) (string, error)
	Close() error
}

// Markers of anti-bot and quota pages served with a 200 status.
var blockMarkers = []string{
	"Access Denied",
	"Trop de requêtes",
	"Too Many Requests",
	"captcha-delivery.com",
	"cf-challenge",
}

func isBlockedPage(html string) bool {
	for _, m := range blockMarkers {
		if strings.Contains(html, m) {
			return true
		}
	}
	return false
}

type httpFetcher struct {
	name          string
	rl            ratelimit.Limiter
	httpClient    *resty.Client
	proxySupplier proxy.ProxySupplier
	breaker       *circuitBreaker
	timeout       time.Duration
}

func newHTTPFetcher(name string, cfg config.ScraperConfig, proxySupplier proxy.ProxySupplier) *httpFetcher {
	client := resty.New().
		SetTimeout(cfg.RequestTimeout()).
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(2*time.Second).
		SetRetryMaxWaitTime(10*time.Second).
		SetHeader("User-Agent", cfg.UserAgent).
		SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8").
		SetHeader("Accept-Language", "fr-FR,fr;q=0.9,en;q=0.5").
		SetTLSClientConfig(&tls.Config{
			InsecureSkipVerify: true,
		})

	if proxySupplier != nil {
		if proxyURL := proxySupplier.Get(); proxyURL != "" {
			client.SetProxy(proxyURL)
			log.Infof("🔗 %s: using initial proxy %s", name, proxyURL)
		}
	}

	return &httpFetcher{
		name:          name,
		rl:            ratelimit.New(cfg.MaxRequestsPerSecond),
		httpClient:    client,
		proxySupplier: proxySupplier,
		breaker:       newCircuitBreaker(name, blockedCooldown),
		timeout:       3 * cfg.RequestTimeout(),
	}
}

func (f *httpFetcher) FetchHTML(ctx context.Context, url string) (string, error) {
	if err := f.breaker.check(); err != nil {
		return "", err
	}

	f.rl.Take()

	reqCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	html, blocked, err := f.get(reqCtx, url)
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("request cancelled: %w", ctx.Err())
		}
		return "", err
	}
	if !blocked {
		return html, nil
	}

	log.Warnf("🚫 %s is blocking requests for URL: %s", f.name, url)

	if f.proxySupplier != nil {
		if newProxy := f.proxySupplier.Get(); newProxy != "" {
			log.Infof("🔄 Switching to new proxy: %s", newProxy)
			f.httpClient.SetProxy(newProxy)

			retryHTML, retryBlocked, retryErr := f.get(reqCtx, url)
			if retryErr == nil && !retryBlocked {
				log.Infof("✅ Retry successful with new proxy")
				return retryHTML, nil
			}
		}
	}

	f.breaker.Trigger()
	return "", fmt.Errorf("%w: %s, circuit breaker activated for %v", ErrBlocked, f.name, blockedCooldown)
}

// get performs one request. blocked is set for 429 answers and anti-bot pages.
func (f *httpFetcher) get(ctx context.Context, url string) (html string, blocked bool, err error) {
	resp, err := f.httpClient.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		return "", false, fmt.Errorf("failed to fetch URL: %w", err)
	}

	if resp.StatusCode() == http.StatusTooManyRequests {
		return "", true, nil
	}
	if resp.IsError() {
		return "", false, fmt.Errorf("HTTP error: %d %s", resp.StatusCode(), resp.Status())
	}

	html = resp.String()
	return html, isBlockedPage(html), nil
}

func (f *httpFetcher) Close() error {
	return f.httpClient.Close()
}
