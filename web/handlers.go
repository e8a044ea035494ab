package web

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"go.viam.com/boarddemo/gate"
	"go.viam.com/boarddemo/logging"
)

// RequestIDHeader carries the request id. A valid incoming id is reused, otherwise one is made.
const RequestIDHeader = "X-Request-Id"

var (
	ulpFormPage = template.Must(template.New("ulp").Parse(`<!doctype html>
<html>
    <body>
        <form method="post" action="/ulp_start" enctype="application/x-www-form-urlencoded">
            Connect a LED to the board's LED pin and GND.<br>
            Blink it with ULP <input name="cycles" type="text" value="{{.}}"> times
            <input type="submit" value="Go!">
        </form>
    </body>
</html>
`))

	ulpStartPage = template.Must(template.New("ulp_start").Parse(`<!doctype html>
<html>
    <body>
        About to sleep now. The ULP chip should blink the LED {{.}} times and then wake me up. Bye!
    </body>
</html>
`))
)

// defaultFormCycles is prefilled in the ULP form.
const defaultFormCycles = 10

type requestLoggerKeyType int

const requestLoggerKey = requestLoggerKeyType(iota)

// requestIDMiddleware tags each request with an id and a logger carrying that id.
func requestIDMiddleware(logger logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := uuid.Parse(r.Header.Get(RequestIDHeader))
			if err != nil {
				id = uuid.New()
			}
			w.Header().Set(RequestIDHeader, id.String())
			reqLogger := logging.WithFields(logger, "request_id", id.String())
			ctx := contextWithLogger(r.Context(), reqLogger)
			reqLogger.CDebugw(ctx, "request", "method", r.Method, "path", r.URL.Path)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func contextWithLogger(ctx context.Context, logger logging.Logger) context.Context {
	return context.WithValue(ctx, requestLoggerKey, logger)
}

func (s *Server) requestLogger(r *http.Request) logging.Logger {
	if logger, ok := r.Context().Value(requestLoggerKey).(logging.Logger); ok {
		return logger
	}
	return s.logger
}

func (s *Server) limitPosts(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			s.requestLogger(r).CWarnw(r.Context(), "rate limited", "path", r.URL.Path)
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	fmt.Fprint(w, "Hello, world!")
}

func (s *Server) handleFoo(w http.ResponseWriter, r *http.Request) {
	http.Error(w, "Boo, something happened!", http.StatusInternalServerError)
}

func (s *Server) handleBar(w http.ResponseWriter, r *http.Request) {
	http.Error(w, "You have no permissions to access this page", http.StatusForbidden)
}

func (s *Server) handleULPForm(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := ulpFormPage.Execute(w, defaultFormCycles); err != nil {
		s.requestLogger(r).CDebugw(r.Context(), "couldn't execute web page", "error", err)
	}
}

// maxFormBytes bounds how much of a ulp_start body is read.
const maxFormBytes = 1 << 10

// parseCycles reads the first `cycles` field of a form-urlencoded body. The body is parsed
// whatever the Content-Type says, so plain clients like `curl --data-binary` work too. A single
// leading '+' is accepted.
func parseCycles(r *http.Request) (uint32, error) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxFormBytes))
	if err != nil {
		return 0, err
	}
	form, err := url.ParseQuery(string(raw))
	if err != nil {
		return 0, err
	}
	values, ok := form["cycles"]
	if !ok || len(values) == 0 {
		return 0, errors.New("No parameter cycles")
	}
	cycles, err := strconv.ParseUint(strings.TrimPrefix(values[0], "+"), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(cycles), nil
}

func (s *Server) handleULPStart(w http.ResponseWriter, r *http.Request) {
	logger := s.requestLogger(r)
	cycles, err := parseCycles(r)
	if err != nil {
		logger.CInfow(r.Context(), "bad ulp_start request", "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.gate.Set(cycles); err != nil {
		if errors.Is(err, gate.ErrAlreadySet) || errors.Is(err, gate.ErrConsumed) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	logger.CInfow(r.Context(), "received ulp cycles", "cycles", cycles, "overwritten", s.gate.Overwritten())

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := ulpStartPage.Execute(w, cycles); err != nil {
		logger.CDebugw(r.Context(), "couldn't execute web page", "error", err)
	}
}

// Status is the body of GET /status.
type Status struct {
	State       gate.State `json:"state"`
	Overwritten int64      `json:"overwritten"`
	Uptime      string     `json:"uptime"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := Status{
		State:       s.gate.State(),
		Overwritten: s.gate.Overwritten(),
		Uptime:      s.uptime().String(),
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		s.requestLogger(r).CDebugw(r.Context(), "couldn't encode status", "error", err)
	}
}
