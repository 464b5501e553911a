// Package browser implements the harvest.Session browsing capability with
// headless Chrome via chromedp. One Session owns one browser tab for the
// whole run.
package browser

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/skillsync/harvester/internal/harvest"
)

// Config controls the headless browser session.
type Config struct {
	UserAgent string
	Headless  bool
	// OpTimeout bounds each individual browsing operation (navigate, click,
	// wait). It does not bound the run as a whole; callers do that through
	// the context.
	OpTimeout time.Duration
}

// Session is a chromedp-backed harvest.Session.
type Session struct {
	cfg           Config
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	logger        *zap.Logger
}

var _ harvest.Session = (*Session)(nil)

// New launches a headless browser and warms up a tab. The returned session
// must be closed to tear the browser down.
func New(cfg Config, logger *zap.Logger) (*Session, error) {
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = 45 * time.Second
	}

	opts := chromedp.DefaultExecAllocatorOptions[:]
	opts = append(opts,
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx, networkSetup(cfg.UserAgent)); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}

	return &Session{
		cfg:           cfg,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		logger:        logger,
	}, nil
}

// Close tears down the tab and the browser process.
func (s *Session) Close() {
	if s == nil {
		return
	}
	s.browserCancel()
	s.allocCancel()
}

// Navigate loads url in the session's tab.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.logger.Debug("Navigating", zap.String("url", url))
	if err := s.run(ctx, chromedp.Navigate(url), chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

// Fill sets the value of the input matched by selector.
func (s *Session) Fill(ctx context.Context, selector, text string) error {
	if err := s.run(ctx, chromedp.SetValue(selector, text, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("fill %s: %w", selector, err)
	}
	return nil
}

// Click activates the element matched by selector.
func (s *Session) Click(ctx context.Context, selector string) error {
	if err := s.run(ctx, chromedp.Click(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("click %s: %w", selector, err)
	}
	return nil
}

// WaitForSelector blocks until selector matches an element in the DOM.
func (s *Session) WaitForSelector(ctx context.Context, selector string) error {
	if err := s.run(ctx, chromedp.WaitReady(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("wait for %s: %w", selector, err)
	}
	return nil
}

// WaitFor sleeps inside the browser context, giving the page time to
// re-render after a pagination click.
func (s *Session) WaitFor(ctx context.Context, d time.Duration) error {
	if err := s.run(ctx, chromedp.Sleep(d)); err != nil {
		return fmt.Errorf("settle wait: %w", err)
	}
	return nil
}

// ElementText reads the text content of the first element matched by
// selector. A non-matching selector is reported via found=false, not an
// error.
func (s *Session) ElementText(ctx context.Context, selector string) (string, bool, error) {
	js := fmt.Sprintf(
		`(() => { const el = document.querySelector(%s); return el === null ? null : el.textContent; })()`,
		strconv.Quote(selector),
	)
	var text *string
	if err := s.run(ctx, chromedp.Evaluate(js, &text)); err != nil {
		return "", false, fmt.Errorf("read text of %s: %w", selector, err)
	}
	if text == nil {
		return "", false, nil
	}
	return *text, true, nil
}

// HasElement reports whether selector currently matches anything.
func (s *Session) HasElement(ctx context.Context, selector string) (bool, error) {
	js := fmt.Sprintf(`document.querySelector(%s) !== null`, strconv.Quote(selector))
	var present bool
	if err := s.run(ctx, chromedp.Evaluate(js, &present)); err != nil {
		return false, fmt.Errorf("probe %s: %w", selector, err)
	}
	return present, nil
}

// Rows snapshots the rendered document and parses out the rows matched by
// selector.
func (s *Session) Rows(ctx context.Context, selector string) ([]harvest.TableRow, error) {
	var html string
	if err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return nil, fmt.Errorf("snapshot document: %w", err)
	}
	rows, err := ParseRows(html, selector)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("Rows snapshotted", zap.Int("count", len(rows)))
	return rows, nil
}

// run executes chromedp actions against the session tab, bounded by the
// per-operation timeout and canceled if the caller's context ends first.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	opCtx, cancel := context.WithTimeout(s.browserCtx, s.cfg.OpTimeout)
	defer cancel()

	stopForward := forwardCancel(ctx, cancel)
	defer stopForward()

	return chromedp.Run(opCtx, actions...)
}

// networkSetup enables the network domain and applies the user-agent
// override before the first navigation.
func networkSetup(userAgent string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if userAgent != "" {
			if err := emulation.SetUserAgentOverride(userAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

// forwardCancel propagates cancellation of parent onto cancel until the
// returned stop function is called.
func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
