package shared

import "context"

type browserSessionKey struct{}

// ContextWithBrowserSession stores the browser session in context.
func ContextWithBrowserSession(ctx context.Context, sess *BrowserSession) context.Context {
	return context.WithValue(ctx, browserSessionKey{}, sess)
}

// BrowserSessionFromContext extracts the browser session from context.
func BrowserSessionFromContext(ctx context.Context) *BrowserSession {
	sess, _ := ctx.Value(browserSessionKey{}).(*BrowserSession)
	return sess
}
