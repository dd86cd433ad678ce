package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/flashbots/go-utils/httplogger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/ruteri/peer-name-service/api"
	"github.com/ruteri/peer-name-service/common"
	"github.com/ruteri/peer-name-service/metrics"
	"go.uber.org/atomic"
)

type Server struct {
	cfg     *api.HTTPServerConfig
	isReady atomic.Bool
	log     *slog.Logger

	// drained is set once DrainDuration has passed since /drain. Mutations are refused
	// from then on so the final snapshot taken at shutdown is not raced by late writes.
	drained    atomic.Bool
	drainMu    sync.Mutex
	drainTimer *time.Timer

	srv        *http.Server
	metricsSrv *metrics.MetricsServer
	handler    *Handler
}

// New creates the API server. If metricsSrv is nil a metrics server is created on cfg.MetricsAddr.
func New(cfg *api.HTTPServerConfig, handler *Handler, metricsSrv *metrics.MetricsServer) (srv *Server, err error) {
	cfg = cfg.WithDefaults()
	if metricsSrv == nil {
		metricsSrv, err = metrics.New(common.PackageName, cfg.MetricsAddr)
		if err != nil {
			return nil, err
		}
	}

	srv = &Server{
		cfg:        cfg,
		log:        cfg.Log,
		srv:        nil,
		metricsSrv: metricsSrv,
		handler:    handler,
	}
	srv.isReady.Store(true)

	srv.srv = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.getRouter(),
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}

	return srv, nil
}

// Handler returns the API router, for tests and embedding.
func (srv *Server) Handler() http.Handler {
	return srv.srv.Handler
}

func (srv *Server) getRouter() http.Handler {
	mux := chi.NewRouter()

	mux.Group(func(r chi.Router) {
		r.Use(srv.httpLogger)

		r.Group(func(r chi.Router) {
			r.Use(srv.rejectWhenDrained)

			r.Post("/api/v1/names/register", srv.handler.HandleRegister)
			r.Post("/api/v1/names/register_sub", srv.handler.HandleRegisterSub)
			r.Post("/api/v1/names/update_resolver", srv.handler.HandleUpdateResolver)
			r.Post("/api/v1/names/update_sub_resolver", srv.handler.HandleUpdateSubResolver)
			r.Post("/api/v1/names/transfer", srv.handler.HandleTransfer)
			r.Post("/api/v1/names/renounce", srv.handler.HandleRenounce)
			r.Post("/api/v1/names/renounce_by_manager", srv.handler.HandleRenounceByManager)
			r.Post("/api/v1/roles/manager", srv.handler.HandleChangeManager)
		})

		r.Get("/api/v1/names/{name}", srv.handler.HandleLookup)
		r.Get("/api/v1/names/{parent}/subs/{sub}", srv.handler.HandleLookupSub)
		r.Get("/api/v1/roles", srv.handler.HandleRoles)

		// Health and diagnostic endpoints
		r.Get("/livez", srv.handleLivenessCheck)
		r.Get("/readyz", srv.handleReadinessCheck)
		r.Get("/drain", srv.handleDrain)
		r.Get("/undrain", srv.handleUndrain)
	})

	// The stream hijacks the connection, so it bypasses the access log wrapper.
	mux.Get("/api/v1/events", srv.handler.HandleEvents)

	if srv.cfg.EnablePprof {
		srv.log.Info("pprof API enabled")
		mux.Mount("/debug", middleware.Profiler())
	}
	return mux
}

func (srv *Server) httpLogger(next http.Handler) http.Handler {
	return httplogger.LoggingMiddlewareSlog(srv.log, next)
}

var errDraining = errors.New("server is draining")

func (srv *Server) rejectWhenDrained(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if srv.drained.Load() {
			writeError(w, &RequestError{StatusCode: http.StatusServiceUnavailable, Err: errDraining})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (srv *Server) handleLivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"alive"}`))
}

func (srv *Server) handleReadinessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !srv.isReady.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"not ready"}`))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}

func (srv *Server) handleDrain(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !srv.isReady.Swap(false) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"already draining"}`))
		return
	}

	srv.log.Info("Server marked as not ready")

	// Load balancers get DrainDuration to notice before writes are refused.
	srv.drainMu.Lock()
	srv.drainTimer = time.AfterFunc(srv.cfg.DrainDuration, func() {
		srv.drainMu.Lock()
		defer srv.drainMu.Unlock()
		if srv.isReady.Load() {
			return
		}
		srv.drained.Store(true)
		srv.log.Info("Drain period completed, refusing mutations")
	})
	srv.drainMu.Unlock()

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"draining"}`))
}

func (srv *Server) handleUndrain(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if srv.isReady.Swap(true) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"already ready"}`))
		return
	}

	srv.drainMu.Lock()
	if srv.drainTimer != nil {
		srv.drainTimer.Stop()
		srv.drainTimer = nil
	}
	srv.drained.Store(false)
	srv.drainMu.Unlock()

	srv.log.Info("Server marked as ready")

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}

func (srv *Server) RunInBackground() {
	// metrics
	if srv.cfg.MetricsAddr != "" {
		go func() {
			srv.log.With("metricsAddress", srv.cfg.MetricsAddr).Info("Starting metrics server")
			err := srv.metricsSrv.ListenAndServe()
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				srv.log.Error("HTTP server failed", "err", err)
			}
		}()
	}

	// api
	go func() {
		srv.log.Info("Starting HTTP server", "listenAddress", srv.cfg.ListenAddr)
		if err := srv.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srv.log.Error("HTTP server failed", "err", err)
		}
	}()
}

func (srv *Server) Shutdown() {
	// api
	ctx, cancel := context.WithTimeout(context.Background(), srv.cfg.GracefulShutdownDuration)
	defer cancel()
	if err := srv.srv.Shutdown(ctx); err != nil {
		srv.log.Error("Graceful HTTP server shutdown failed", "err", err)
	} else {
		srv.log.Info("HTTP server gracefully stopped")
	}

	// metrics
	if len(srv.cfg.MetricsAddr) != 0 {
		ctx, cancel := context.WithTimeout(context.Background(), srv.cfg.GracefulShutdownDuration)
		defer cancel()

		if err := srv.metricsSrv.Shutdown(ctx); err != nil {
			srv.log.Error("Graceful metrics server shutdown failed", "err", err)
		} else {
			srv.log.Info("Metrics server gracefully stopped")
		}
	}
}
