// Package browsertest provides a scripted in-memory browser for tests.
package browsertest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/JakeFAU/review-hub/internal/browser"
)

// Call is one recorded page interaction.
type Call struct {
	Op  string
	Arg string
}

// EvalFunc answers a script evaluated while the page is at url.
type EvalFunc func(url, script string) (any, error)

// Browser hands out Page for every Open.
type Browser struct {
	Page    *Page
	OpenErr error

	mu    sync.Mutex
	opens int
}

// Open satisfies browser.Browser.
func (b *Browser) Open(ctx context.Context, url string) (browser.Page, error) {
	b.mu.Lock()
	b.opens++
	b.mu.Unlock()
	if b.OpenErr != nil {
		return nil, b.OpenErr
	}
	if b.Page == nil {
		b.Page = &Page{}
	}
	b.Page.reopen()
	if url != "" {
		if err := b.Page.Navigate(ctx, url); err != nil {
			return nil, err
		}
	}
	return b.Page, nil
}

// Opens reports how many pages were opened.
func (b *Browser) Opens() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.opens
}

// Page records calls and answers Evaluate through Eval.
type Page struct {
	Eval        EvalFunc
	NavigateErr func(url string) error
	SelectorErr error
	// Status answers LastStatus for the current url. Nil means 200.
	Status func(url string) int

	mu     sync.Mutex
	url    string
	calls  []Call
	closed bool
}

func (p *Page) record(op, arg string) {
	p.mu.Lock()
	p.calls = append(p.calls, Call{Op: op, Arg: arg})
	p.mu.Unlock()
}

func (p *Page) reopen() {
	p.mu.Lock()
	p.closed = false
	p.mu.Unlock()
}

// Navigate satisfies browser.Page.
func (p *Page) Navigate(ctx context.Context, url string) error {
	p.record("navigate", url)
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.NavigateErr != nil {
		if err := p.NavigateErr(url); err != nil {
			return err
		}
	}
	p.mu.Lock()
	p.url = url
	p.mu.Unlock()
	return nil
}

// Evaluate round-trips Eval's answer through JSON into out.
func (p *Page) Evaluate(ctx context.Context, script string, out any) error {
	p.record("evaluate", script)
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.Eval == nil {
		return nil
	}
	p.mu.Lock()
	url := p.url
	p.mu.Unlock()
	v, err := p.Eval(url, script)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("browsertest: marshal result: %w", err)
	}
	return json.Unmarshal(raw, out)
}

// Wait records d without sleeping.
func (p *Page) Wait(ctx context.Context, d time.Duration) error {
	p.record("wait", d.String())
	return ctx.Err()
}

// WaitForSelector returns SelectorErr.
func (p *Page) WaitForSelector(ctx context.Context, selector string, _ time.Duration) error {
	p.record("wait_selector", selector)
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.SelectorErr
}

// LastStatus satisfies browser.StatusReporter.
func (p *Page) LastStatus() int {
	p.mu.Lock()
	url := p.url
	p.mu.Unlock()
	if p.Status == nil {
		return 200
	}
	return p.Status(url)
}

// Close marks the page closed.
func (p *Page) Close() error {
	p.record("close", "")
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

// Closed reports whether Close was called since the last Open.
func (p *Page) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Calls returns a copy of the recorded interactions.
func (p *Page) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Call(nil), p.calls...)
}

// Count returns how many calls of op were made, optionally matching arg.
func (p *Page) Count(op, arg string) int {
	n := 0
	for _, c := range p.Calls() {
		if c.Op == op && (arg == "" || c.Arg == arg) {
			n++
		}
	}
	return n
}
