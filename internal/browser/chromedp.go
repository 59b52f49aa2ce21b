package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

// Config controls the chromedp browser.
type Config struct {
	// MaxParallel caps open pages. Zero means unlimited.
	MaxParallel       int
	UserAgent         string
	ExecPath          string
	Headless          bool
	NavigationTimeout time.Duration
	CallTimeout       time.Duration
}

// Chromedp implements Browser with a shared headless Chrome allocator.
type Chromedp struct {
	cfg         Config
	limiter     chan struct{}
	allocator   context.Context
	allocCancel context.CancelFunc
}

// NewChromedp prepares an allocator. Chrome itself starts on the first Open.
func NewChromedp(cfg Config) (*Chromedp, error) {
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0")
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 45 * time.Second
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 30 * time.Second
	}
	var limiter chan struct{}
	if cfg.MaxParallel > 0 {
		limiter = make(chan struct{}, cfg.MaxParallel)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(1366, 900),
	)
	if cfg.Headless {
		opts = append(opts, chromedp.Flag("headless", "new"))
	} else {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Chromedp{
		cfg:         cfg,
		limiter:     limiter,
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}, nil
}

// Close shuts Chrome down.
func (c *Chromedp) Close() {
	c.allocCancel()
}

// Open creates a tab and optionally navigates it.
func (c *Chromedp) Open(ctx context.Context, url string) (Page, error) {
	if err := c.acquire(ctx); err != nil {
		return nil, err
	}
	tabCtx, tabCancel := chromedp.NewContext(c.allocator)
	page := &chromePage{
		ctx:     tabCtx,
		cancel:  tabCancel,
		release: c.release,
		cfg:     c.cfg,
		meta:    &responseMeta{},
	}
	chromedp.ListenTarget(tabCtx, page.meta.captureEvent)

	// The first Run must use the tab context itself; cancelling a derived
	// context here would close the tab.
	if err := chromedp.Run(tabCtx, c.setupAction()); err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("open browser tab: %w", err)
	}
	if url != "" {
		if err := page.Navigate(ctx, url); err != nil {
			_ = page.Close()
			return nil, err
		}
	}
	return page, nil
}

func (c *Chromedp) setupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if c.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(c.cfg.UserAgent).
				WithAcceptLanguage("ko-KR,ko;q=0.9,en;q=0.8").Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

func (c *Chromedp) acquire(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	select {
	case c.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("browser slot wait canceled: %w", ctx.Err())
	}
}

func (c *Chromedp) release() {
	if c.limiter == nil {
		return
	}
	select {
	case <-c.limiter:
	default:
	}
}

type chromePage struct {
	ctx     context.Context
	cancel  context.CancelFunc
	release func()
	cfg     Config
	meta    *responseMeta
	once    sync.Once
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	err := p.run(ctx, p.cfg.NavigationTimeout,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

func (p *chromePage) Evaluate(ctx context.Context, script string, out any) error {
	if out == nil {
		var discard []byte
		out = &discard
	}
	err := p.run(ctx, p.cfg.CallTimeout, chromedp.Evaluate(script, out, awaitPromise))
	if err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}
	return nil
}

func (p *chromePage) Wait(ctx context.Context, d time.Duration) error {
	return Sleep(ctx, d)
}

func (p *chromePage) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = p.cfg.CallTimeout
	}
	if err := p.run(ctx, timeout, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("wait for %s: %w", selector, err)
	}
	return nil
}

// LastStatus is the HTTP status of the most recent document response.
func (p *chromePage) LastStatus() int {
	status, _ := p.meta.snapshot()
	return status
}

func (p *chromePage) Close() error {
	p.once.Do(func() {
		p.cancel()
		p.release()
	})
	return nil
}

// run bounds actions by timeout and by the caller's ctx.
func (p *chromePage) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(p.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

func awaitPromise(p *runtime.EvaluateParams) *runtime.EvaluateParams {
	return p.WithAwaitPromise(true)
}

// StatusReporter is implemented by pages that track document status codes.
type StatusReporter interface {
	LastStatus() int
}

type responseMeta struct {
	mu     sync.RWMutex
	status int
	url    string
}

func (m *responseMeta) captureEvent(ev any) {
	resp, ok := ev.(*network.EventResponseReceived)
	if !ok || resp.Type != network.ResourceTypeDocument || resp.Response == nil {
		return
	}
	m.mu.Lock()
	m.status = int(resp.Response.Status)
	m.url = resp.Response.URL
	m.mu.Unlock()
}

func (m *responseMeta) snapshot() (int, string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status, m.url
}
