package logging

import (
	"context"
	"net/http"

	"go.viam.com/utils"
)

type debugKey struct{}

// DebugHeader is the request header that turns on debug logging for the request's context.
const DebugHeader = "X-Debug-Log"

// EnableDebugMode marks ctx so the C-prefixed logging methods log at every level. The name
// identifies the request in logs; a random one is chosen when empty.
func EnableDebugMode(ctx context.Context, name string) context.Context {
	if name == "" {
		name = utils.RandomAlphaString(6)
	}
	return context.WithValue(ctx, debugKey{}, name)
}

// IsDebugMode reports whether EnableDebugMode marked ctx.
func IsDebugMode(ctx context.Context) bool {
	return GetName(ctx) != ""
}

// GetName returns the name given to EnableDebugMode, or "".
func GetName(ctx context.Context) string {
	name, _ := ctx.Value(debugKey{}).(string)
	return name
}

// DebugMiddleware enables debug mode on the request context when the request carries the
// DebugHeader. The header value becomes the debug log key.
func DebugMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if key := r.Header.Get(DebugHeader); key != "" {
			r = r.WithContext(EnableDebugMode(r.Context(), key))
		}
		next.ServeHTTP(w, r)
	})
}
