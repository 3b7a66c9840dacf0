// Package api serves the ticker registry, cached fair values and ad-hoc batch
// pricing over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/bcdannyboy/cnpricer/cache"
	"github.com/bcdannyboy/cnpricer/jobs"
	"github.com/bcdannyboy/cnpricer/logger"
	"github.com/gorilla/mux"
	"github.com/xhhuango/json"
)

// MaxBatchSize caps the number of requests accepted by POST /price.
const MaxBatchSize = 1000

type Store interface {
	Ping(ctx context.Context) error
	Tickers(ctx context.Context) ([]string, error)
	AddTicker(ctx context.Context, ticker string) error
	DeleteTicker(ctx context.Context, ticker string) error
	OptionsForTicker(ctx context.Context, ticker string) ([]cache.CachedOption, error)
}

type Server struct {
	store Store
	proc  *jobs.Processor
	log   *slog.Logger
	srv   *http.Server
}

type Route struct {
	Name        string
	Method      string
	Pattern     string
	HandlerFunc http.HandlerFunc
}

func NewServer(addr string, store Store, proc *jobs.Processor, log *slog.Logger) *Server {
	if log == nil {
		log = logger.Get()
	}
	s := &Server{store: store, proc: proc, log: log.With(slog.String("component", "api"))}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Router() *mux.Router {
	router := mux.NewRouter().StrictSlash(true)
	routes := []Route{
		{"Health", http.MethodGet, "/", s.getIndex},
		{"ListTickers", http.MethodGet, "/tickers", s.getTickers},
		{"AddTicker", http.MethodPost, "/tickers", s.addTicker},
		{"DeleteTicker", http.MethodDelete, "/tickers/{ticker}", s.deleteTicker},
		{"TickerOptions", http.MethodGet, "/tickers/{ticker}/options", s.getTickerOptions},
		{"PriceBatch", http.MethodPost, "/price", s.priceBatch},
	}

	for _, route := range routes {
		router.
			Methods(route.Method).
			Path(route.Pattern).
			Name(route.Name).
			Handler(s.requestLogger(route.HandlerFunc, route.Name))
	}
	return router
}

// requestLogger logs each request after it is served.
func (s *Server) requestLogger(inner http.Handler, name string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		inner.ServeHTTP(w, r)
		s.log.Debug("request",
			slog.String("method", r.Method),
			slog.String("uri", r.RequestURI),
			slog.String("route", name),
			slog.Duration("elapsed", time.Since(start)))
	})
}

// ListenAndServe blocks until ctx is cancelled, then shuts the server down.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", slog.String("addr", s.srv.Addr))
		errc <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) getIndex(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"status": "ok", "redis": "ok"}
	code := http.StatusOK
	if err := s.store.Ping(r.Context()); err != nil {
		status["status"], status["redis"] = "degraded", err.Error()
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

func (s *Server) getTickers(w http.ResponseWriter, r *http.Request) {
	tickers, err := s.store.Tickers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if tickers == nil {
		tickers = []string{}
	}
	writeJSON(w, http.StatusOK, tickers)
}

type tickerRequest struct {
	Ticker string `json:"ticker"`
}

func (s *Server) addTicker(w http.ResponseWriter, r *http.Request) {
	var req tickerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
		return
	}
	ticker := cache.NormalizeTicker(req.Ticker)
	if ticker == "" {
		writeError(w, http.StatusBadRequest, errors.New("ticker is required"))
		return
	}
	if err := s.store.AddTicker(r.Context(), ticker); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.log.Info("ticker added", slog.String("ticker", ticker))
	writeJSON(w, http.StatusCreated, map[string]string{"message": fmt.Sprintf("ticker %s added", ticker)})
}

func (s *Server) deleteTicker(w http.ResponseWriter, r *http.Request) {
	ticker := cache.NormalizeTicker(mux.Vars(r)["ticker"])
	if err := s.store.DeleteTicker(r.Context(), ticker); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.log.Info("ticker deleted", slog.String("ticker", ticker))
	writeJSON(w, http.StatusOK, map[string]string{"message": fmt.Sprintf("ticker %s deleted", ticker)})
}

func (s *Server) getTickerOptions(w http.ResponseWriter, r *http.Request) {
	options, err := s.store.OptionsForTicker(r.Context(), mux.Vars(r)["ticker"])
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, options)
}

type priceResponse struct {
	Accepted   int              `json:"accepted"`
	Duplicates []jobs.JobKey    `json:"duplicates"`
	Results    []jobs.JobResult `json:"results"`
}

// priceBatch runs the posted requests as one batch on a private queue, so it
// never drains jobs queued by the poller.
func (s *Server) priceBatch(w http.ResponseWriter, r *http.Request) {
	var reqs []jobs.JobRequest
	if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
		return
	}
	if len(reqs) > MaxBatchSize {
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Errorf("batch of %d exceeds limit of %d", len(reqs), MaxBatchSize))
		return
	}

	pricer := jobs.NewPricer(s.proc)
	resp := priceResponse{Duplicates: []jobs.JobKey{}, Results: []jobs.JobResult{}}
	for _, req := range reqs {
		if pricer.SubmitJob(req) == jobs.DuplicateDropped {
			resp.Duplicates = append(resp.Duplicates, jobs.NewJob(req).Key())
			continue
		}
		resp.Accepted++
	}

	results, err := pricer.RunBatch(r.Context(), nil)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if results != nil {
		resp.Results = results
	}
	writeJSON(w, http.StatusOK, resp)
}
