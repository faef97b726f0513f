package shared

import "context"

// FlashNotifier turns store notifications into flashes on the request's
// browser session. Notifications without a session are dropped.
type FlashNotifier struct{}

func (FlashNotifier) Notify(ctx context.Context, kind, message string) {
	if sess := BrowserSessionFromContext(ctx); sess != nil {
		sess.AddFlash(FlashMessage{Kind: kind, Message: message})
	}
}
