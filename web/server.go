// Package web serves the demo's small HTTP site. Submitting the ULP form hands the blink cycle
// count to the main flow through a gate.
package web

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/rs/cors"
	goutils "go.viam.com/utils"
	"goji.io"
	"goji.io/pat"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/time/rate"

	"go.viam.com/boarddemo/config"
	"go.viam.com/boarddemo/gate"
	"go.viam.com/boarddemo/logging"
)

// Server hosts the demo routes on the configured bind address.
type Server struct {
	cfg     config.NetworkConfig
	gate    *gate.Gate[uint32]
	logger  logging.Logger
	clock   clock.Clock
	limiter *rate.Limiter
	started time.Time

	mu         sync.Mutex
	listener   net.Listener
	httpServer *http.Server
	serveDone  chan struct{}
}

// Option configures a Server.
type Option func(*Server)

// WithClock replaces the clock used to report uptime.
func WithClock(clk clock.Clock) Option {
	return func(s *Server) {
		s.clock = clk
	}
}

// New returns a server that delivers submitted cycle counts to g. cfg is expected to be validated.
func New(cfg config.NetworkConfig, g *gate.Gate[uint32], logger logging.Logger, opts ...Option) *Server {
	s := &Server{
		cfg:    cfg,
		gate:   g,
		logger: logger,
		clock:  clock.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.limiter = rate.NewLimiter(rate.Limit(cfg.PostsPerSecond), cfg.PostBurst)
	s.started = s.clock.Now()
	return s
}

// Handler returns the root handler with all routes and middleware installed.
func (s *Server) Handler() http.Handler {
	mux := goji.NewMux()
	mux.Use(requestIDMiddleware(s.logger))
	mux.Use(logging.DebugMiddleware)

	mux.HandleFunc(pat.Get("/"), s.handleRoot)
	mux.HandleFunc(pat.Get("/foo"), s.handleFoo)
	mux.HandleFunc(pat.Get("/bar"), s.handleBar)
	mux.HandleFunc(pat.Get("/ulp"), s.handleULPForm)
	mux.Handle(pat.Post("/ulp_start"), s.limitPosts(http.HandlerFunc(s.handleULPStart)))
	mux.HandleFunc(pat.Get("/status"), s.handleStatus)

	corsOpts := cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
	}
	if len(s.cfg.CORSAllowedOrigins) == 0 {
		corsOpts.AllowedOrigins = []string{"*"}
	} else {
		corsOpts.AllowedOrigins = s.cfg.CORSAllowedOrigins
	}
	return cors.New(corsOpts).Handler(mux)
}

// Start listens on the bind address and serves in the background until Stop is called or ctx
// is done.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.httpServer != nil {
		return errors.New("web server already started")
	}

	listener, err := net.Listen("tcp", s.cfg.BindAddress)
	if err != nil {
		return errors.Wrapf(err, "listening on %s", s.cfg.BindAddress)
	}

	httpServer := &http.Server{
		Addr:           listener.Addr().String(),
		ReadTimeout:    10 * time.Second,
		MaxHeaderBytes: 1 << 20,
		Handler:        h2c.NewHandler(s.Handler(), &http2.Server{}),
		BaseContext:    func(net.Listener) context.Context { return ctx },
	}
	s.listener = listener
	s.httpServer = httpServer
	s.serveDone = make(chan struct{})

	serveDone := s.serveDone
	goutils.PanicCapturingGo(func() {
		defer close(serveDone)
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Errorw("error serving", "error", err)
		}
	})
	goutils.PanicCapturingGo(func() {
		select {
		case <-ctx.Done():
		case <-serveDone:
			return
		}
		if err := httpServer.Shutdown(context.Background()); err != nil {
			s.logger.Errorw("error shutting down", "error", err)
		}
	})

	s.logger.Infow("serving", "url", fmt.Sprintf("http://%s", listener.Addr().String()))
	return nil
}

// Addr returns the address being listened on, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop shuts the server down, waiting for in flight requests until ctx is done.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	httpServer, serveDone := s.httpServer, s.serveDone
	s.mu.Unlock()
	if httpServer == nil {
		return nil
	}

	if err := httpServer.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "shutting down web server")
	}
	<-serveDone
	return nil
}

func (s *Server) uptime() time.Duration {
	return s.clock.Since(s.started)
}
