package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"hpackCodec/internal/handler"
	"hpackCodec/internal/helper"
	"hpackCodec/internal/logging"
	"hpackCodec/internal/metrics"
	"hpackCodec/internal/session"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	Address   string
	Blacklist []net.IP
	Logger    logging.Logger

	config     *Config
	store      *session.Store
	httpServer *http.Server
}

func NewServer(config *Config, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	opts := config.SessionOptions()
	opts.Logger = logger

	srv := &Server{
		Address:   config.Server.Address,
		Blacklist: lo.Map(config.Blacklist, func(ip string, _ int) net.IP { return net.ParseIP(ip) }),
		Logger:    logger,
		config:    config,
		store:     session.NewStore(config.SessionTTL(), opts),
	}
	srv.httpServer = &http.Server{
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return srv
}

func (srv *Server) Log(level logging.LogLevel, message string, args ...interface{}) {
	srv.Logger.Log(level, message, args...)
}

func (srv *Server) Store() *session.Store {
	return srv.store
}

// Router builds the chi router serving the session API and /metrics.
func (srv *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(srv.rejectBlacklisted)

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	handler.NewHandler(srv.store, srv.Logger).Routes(r)

	return r
}

func (srv *Server) isBlacklisted(remoteAddr string) bool {
	remoteIP, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		srv.Log(logging.LogLevelError, "Failed to parse remote address: %v", err)
		return true
	}

	ip := net.ParseIP(remoteIP)
	if lo.ContainsBy(srv.Blacklist, ip.Equal) {
		srv.Log(logging.LogLevelDebug, "Detected blacklisted IP: %s", remoteIP)
		return true
	}
	return false
}

func (srv *Server) rejectBlacklisted(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if srv.isBlacklisted(r.RemoteAddr) {
			srv.Log(logging.LogLevelWarn, "Rejected request from blacklisted address %s", r.RemoteAddr)
			if err := handler.WriteError(w, http.StatusForbidden, "forbidden"); err != nil {
				srv.Log(logging.LogLevelError, "Response writer failed: %s", err)
			}
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Listen opens the configured address, wrapped in TLS when a certificate is
// configured.
func (srv *Server) Listen() (net.Listener, error) {
	ln, err := net.Listen("tcp", srv.Address)
	if err != nil {
		return nil, fmt.Errorf("cannot listen on %s: %w", srv.Address, err)
	}

	if !srv.config.TLSEnabled() {
		return ln, nil
	}

	cert, err := helper.LoadCertificates(srv.config.Server.CertFile, srv.config.Server.KeyFile)
	if err != nil {
		_ = ln.Close()
		return nil, fmt.Errorf("failed to load certificates: %w", err)
	}

	return tls.NewListener(ln, &tls.Config{
		NextProtos:   []string{"h2", "http/1.1"},
		Certificates: cert,
	}), nil
}

// Serve handles requests on ln until ctx is cancelled, then shuts down
// gracefully.
func (srv *Server) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		scheme := "http"
		if srv.config.TLSEnabled() {
			scheme = "https"
		}
		srv.Log(logging.LogLevelInfo, "Listening on %s://%s", scheme, ln.Addr().String())

		if err := srv.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		srv.Log(logging.LogLevelInfo, "Shutting down, %d sessions open", srv.store.Len())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func (srv *Server) Run(ctx context.Context) error {
	ln, err := srv.Listen()
	if err != nil {
		return err
	}
	return srv.Serve(ctx, ln)
}
