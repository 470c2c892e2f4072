package httpx

import "context"

type ctxKey string

const (
	// CtxKeySubject holds the authenticated subject id.
	CtxKeySubject ctxKey = "subject"
)

// SubjectFromContext returns the authenticated subject, or "" when the
// request did not pass AuthnMiddleware.
func SubjectFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(CtxKeySubject).(string); ok {
		return v
	}
	return ""
}
