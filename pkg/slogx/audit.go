package slogx

import "context"

// Audit emits a security-relevant event. These records are the only place
// where the specific reason a token was rejected is retained; HTTP
// responses stay generic so callers cannot probe which defense fired.
func Audit(ctx context.Context, event string, args ...any) {
	l := FromContext(ctx).With("audit", true)
	l.Warn(event, args...)
}
