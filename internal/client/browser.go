package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cutx/catalog/internal/config"
	"cutx/catalog/internal/proxy"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	log "github.com/sirupsen/logrus"
	"go.uber.org/ratelimit"
)

// browserFetcher renders pages in headless Chrome for suppliers whose listings are built client-side.
type browserFetcher struct {
	name         string
	rl           ratelimit.Limiter
	breaker      *circuitBreaker
	userAgent    string
	waitSelector string
	waitTimeout  time.Duration
	timeout      time.Duration

	allocCtx    context.Context
	allocCancel context.CancelFunc

	startOnce     sync.Once
	startErr      error
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

func newBrowserFetcher(name string, cfg config.ScraperConfig, proxySupplier proxy.ProxySupplier, waitSelector string) *browserFetcher {
	f := &browserFetcher{
		name:         name,
		rl:           ratelimit.New(cfg.MaxRequestsPerSecond),
		breaker:      newCircuitBreaker(name, blockedCooldown),
		userAgent:    cfg.UserAgent,
		waitSelector: waitSelector,
		waitTimeout:  time.Duration(cfg.Chrome.WaitSelectorTimeout) * time.Second,
		timeout:      3 * cfg.RequestTimeout(),
	}

	if cfg.Chrome.RemoteURL != "" {
		log.Infof("🌐 %s: using remote Chrome at %s", name, cfg.Chrome.RemoteURL)
		f.allocCtx, f.allocCancel = chromedp.NewRemoteAllocator(context.Background(), cfg.Chrome.RemoteURL)
		f.browserCtx, f.browserCancel = chromedp.NewContext(f.allocCtx, chromedp.WithLogf(log.Debugf))
		return f
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Chrome.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
		chromedp.UserAgent(cfg.UserAgent),
	)
	if cfg.Chrome.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if proxySupplier != nil {
		if proxyURL := proxySupplier.Get(); proxyURL != "" {
			opts = append(opts, chromedp.ProxyServer(proxyURL))
			log.Infof("🔗 %s: browser uses proxy %s", name, proxyURL)
		}
	}

	f.allocCtx, f.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	f.browserCtx, f.browserCancel = chromedp.NewContext(f.allocCtx, chromedp.WithLogf(log.Debugf))
	return f
}

// start launches the browser once; every page then gets its own tab.
func (f *browserFetcher) start() error {
	f.startOnce.Do(func() {
		if err := chromedp.Run(f.browserCtx); err != nil {
			f.startErr = fmt.Errorf("failed to start browser: %w", err)
			return
		}
		log.Infof("🌐 %s: browser started", f.name)
	})
	return f.startErr
}

func (f *browserFetcher) FetchHTML(ctx context.Context, url string) (string, error) {
	if err := f.breaker.check(); err != nil {
		return "", err
	}

	if err := f.start(); err != nil {
		return "", err
	}

	f.rl.Take()

	// one tab per page, closed when the caller gives up
	tabCtx, cancelTab := chromedp.NewContext(f.browserCtx)
	defer cancelTab()
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	// start the tab on the undecorated context so a timeout does not tear the browser down
	if err := chromedp.Run(tabCtx); err != nil {
		return "", fmt.Errorf("failed to open browser tab: %w", err)
	}

	pageCtx, cancelTimeout := context.WithTimeout(tabCtx, f.timeout)
	defer cancelTimeout()

	if err := chromedp.Run(pageCtx,
		network.Enable(),
		network.SetExtraHTTPHeaders(network.Headers{"Accept-Language": "fr-FR,fr;q=0.9"}),
		emulation.SetUserAgentOverride(f.userAgent).WithAcceptLanguage("fr-FR"),
		chromedp.Navigate(url),
	); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("request cancelled: %w", ctx.Err())
		}
		return "", fmt.Errorf("failed to navigate to %s: %w", url, err)
	}

	waitCtx, cancelWait := context.WithTimeout(pageCtx, f.waitTimeout)
	waitErr := chromedp.Run(waitCtx, chromedp.WaitReady(f.waitSelector, chromedp.ByQuery))
	cancelWait()

	var html string
	if err := chromedp.Run(pageCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to read rendered HTML of %s: %w", url, err)
	}

	if isBlockedPage(html) {
		log.Warnf("🚫 %s is blocking the browser for URL: %s", f.name, url)
		f.breaker.Trigger()
		return "", fmt.Errorf("%w: %s, circuit breaker activated for %v", ErrBlocked, f.name, blockedCooldown)
	}
	if waitErr != nil {
		if errors.Is(waitErr, context.DeadlineExceeded) {
			log.Warnf("⏳ %s: selector %q not found on %s after %v", f.name, f.waitSelector, url, f.waitTimeout)
		} else {
			return "", fmt.Errorf("failed waiting for %s: %w", url, waitErr)
		}
	}

	log.Debugf("Rendered %s (%d bytes)", url, len(html))
	return html, nil
}

func (f *browserFetcher) Close() error {
	if f.browserCancel != nil {
		f.browserCancel()
	}
	if f.allocCancel != nil {
		f.allocCancel()
	}
	return nil
}
