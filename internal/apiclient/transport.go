package apiclient

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

type callKey struct{}

// call describes the logical API operation an outbound request belongs to.
type call struct {
	route      string
	anonymous  bool
	idempotent bool
}

func withCall(ctx context.Context, c call) context.Context {
	return context.WithValue(ctx, callKey{}, c)
}

func callFrom(ctx context.Context) call {
	c, _ := ctx.Value(callKey{}).(call)
	return c
}

// authTransport attaches the bearer token and raises the unauthorized
// signal. It sits below the retry layer, so it sees every attempt.
type authTransport struct {
	next     http.RoundTripper
	logger   *slog.Logger
	observer Observer

	mu        sync.RWMutex
	source    func() string
	listeners []func(context.Context)
}

func (t *authTransport) setSource(source func() string) {
	t.mu.Lock()
	t.source = source
	t.mu.Unlock()
}

func (t *authTransport) addListener(fn func(context.Context)) {
	t.mu.Lock()
	t.listeners = append(t.listeners, fn)
	t.mu.Unlock()
}

func (t *authTransport) token() string {
	t.mu.RLock()
	source := t.source
	t.mu.RUnlock()
	if source == nil {
		return ""
	}
	return source()
}

func (t *authTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	ctx := r.Context()
	c := callFrom(ctx)

	bearer := false
	if !c.anonymous {
		if token := t.token(); token != "" {
			r = r.Clone(ctx)
			r.Header.Set("Authorization", "Bearer "+token)
			bearer = true
		}
	}

	start := time.Now()
	resp, err := t.next.RoundTrip(r)
	elapsed := time.Since(start)

	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	if t.observer != nil {
		t.observer.ObserveAPICall(r.Method, c.route, status, elapsed)
	}

	if err != nil {
		t.logger.WarnContext(ctx, "api request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Duration("duration", elapsed),
			slog.Any("error", err),
		)
		return nil, err
	}

	level := slog.LevelDebug
	if status >= http.StatusInternalServerError {
		level = slog.LevelWarn
	}
	t.logger.Log(ctx, level, "api request",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.Duration("duration", elapsed),
	)

	if status == http.StatusUnauthorized && bearer {
		t.notifyUnauthorized(ctx)
	}
	return resp, nil
}

func (t *authTransport) notifyUnauthorized(ctx context.Context) {
	t.mu.RLock()
	listeners := make([]func(context.Context), len(t.listeners))
	copy(listeners, t.listeners)
	t.mu.RUnlock()

	ctx = context.WithoutCancel(ctx)
	for _, fn := range listeners {
		fn(ctx)
	}
}
