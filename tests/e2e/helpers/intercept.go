package helpers

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"sync/atomic"

	"github.com/JustAProjectacc/climate-data-extraction-tool/internal/logging"
	"github.com/JustAProjectacc/climate-data-extraction-tool/internal/oapif"
	"github.com/playwright-community/playwright-go"
)

// Intercept queues the page's GET responses whose URL matches a pattern.
// Register it before the action that triggers the request. Each Wait consumes
// one queued response, oldest first.
type Intercept struct {
	pattern *regexp.Regexp
	queue   chan playwright.Response
	events  responseEvents
	handler func(playwright.Response)
	stopped atomic.Bool
	dropped atomic.Int64
	logger  *logging.Logger
}

// responseEvents is the part of playwright.Page an Intercept listens on.
type responseEvents interface {
	OnResponse(fn func(playwright.Response))
	RemoveListener(name string, handler interface{})
}

const interceptQueueSize = 64

// NewIntercept starts recording matching responses of page.
//
// playwright identifies listeners by function code, so Stop the previous
// intercept of a page before creating the next one.
func NewIntercept(page responseEvents, pattern *regexp.Regexp) *Intercept {
	ic := &Intercept{
		pattern: pattern,
		queue:   make(chan playwright.Response, interceptQueueSize),
		events:  page,
		logger:  logging.GetLogger("tests.e2e.intercept").WithField("pattern", pattern.String()),
	}

	// The handler runs on playwright's dispatch goroutine and must not block or
	// call back into the driver; bodies are read in Wait.
	ic.handler = func(resp playwright.Response) {
		if ic.stopped.Load() {
			return
		}
		if resp.Request().Method() != http.MethodGet || !pattern.MatchString(resp.URL()) {
			return
		}
		select {
		case ic.queue <- resp:
		default:
			ic.dropped.Add(1)
		}
	}
	page.OnResponse(ic.handler)
	return ic
}

// Wait returns the next matching response, converted so the oapif
// expectations apply to it.
func (ic *Intercept) Wait(ctx context.Context) (*oapif.Response, error) {
	var resp playwright.Response
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("no response matching %s: %w", ic.pattern, ctx.Err())
	case resp = <-ic.queue:
	}

	headers, err := resp.AllHeaders()
	if err != nil {
		return nil, fmt.Errorf("failed to read headers of %s: %w", resp.URL(), err)
	}
	body, err := resp.Body()
	if err != nil {
		return nil, fmt.Errorf("failed to read body of %s: %w", resp.URL(), err)
	}

	h := make(http.Header, len(headers))
	for k, v := range headers {
		h.Set(k, v)
	}
	ic.logger.DebugWithFields("Intercepted response",
		logging.Field("url", resp.URL()),
		logging.Field("status", resp.Status()),
		logging.Field("bytes", len(body)),
	)

	return &oapif.Response{
		URL:             resp.URL(),
		Method:          resp.Request().Method(),
		StatusCode:      resp.Status(),
		Header:          h,
		ContentEncoding: h.Get("Content-Encoding"),
		Body:            body,
	}, nil
}

// Stop removes the page listener. Queued responses can still be waited for.
// Only the first call has an effect.
func (ic *Intercept) Stop() {
	if !ic.stopped.CompareAndSwap(false, true) {
		return
	}
	ic.events.RemoveListener("response", ic.handler)
	if n := ic.dropped.Load(); n > 0 {
		ic.logger.Warn("Dropped %d matching responses, queue full", n)
	}
}
