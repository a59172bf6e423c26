package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"carbonPool/internal/eventlog"
	"carbonPool/internal/ledger"
	"carbonPool/internal/metrics"
	"carbonPool/internal/model"
	"carbonPool/internal/pool"
)

// Journal is the part of the durable journal the API needs.
type Journal interface {
	Checkpoint(ctx context.Context) error
	Events(from, to uint64, fn func(model.LogRecord) error) error
}

// Venue is the pool together with the ledgers it trades against.
type Venue struct {
	Pool    *pool.Pool
	Info    model.PoolInfo
	Credits *ledger.Token
	Shares  *ledger.Token
	Bank    *ledger.Bank
	Journal Journal
}

// Config controls the HTTP surface.
type Config struct {
	CORSOrigins []string
	MaxEvents   uint64
	// AdminToken is the bearer token for owner and approval routes. When it
	// is empty those routes answer 403.
	AdminToken string
}

// Server handles the REST API.
type Server struct {
	cfg     Config
	venue   Venue
	metrics *metrics.Metrics
	decoder *eventlog.Decoder
	logger  *zap.Logger
	router  *mux.Router
}

type requestIDKey struct{}

const requestIDHeader = "X-Request-ID"

// NewServer wires the routes. metrics may be nil.
func NewServer(cfg Config, venue Venue, m *metrics.Metrics, logger *zap.Logger) (*Server, error) {
	if venue.Pool == nil || venue.Credits == nil || venue.Shares == nil || venue.Bank == nil {
		return nil, fmt.Errorf("venue is incomplete")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxEvents == 0 {
		cfg.MaxEvents = 500
	}
	decoder, err := eventlog.NewDecoder()
	if err != nil {
		return nil, err
	}
	s := &Server{
		cfg:     cfg,
		venue:   venue,
		metrics: m,
		decoder: decoder,
		logger:  logger,
		router:  mux.NewRouter(),
	}
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	s.router.Use(s.requestID)

	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/pool", s.handleGetPool).Methods(http.MethodGet)
	api.HandleFunc("/accounts/{address}", s.handleGetAccount).Methods(http.MethodGet)
	api.HandleFunc("/quote", s.handleQuote).Methods(http.MethodGet)
	api.HandleFunc("/events", s.handleEvents).Methods(http.MethodGet)

	api.HandleFunc("/liquidity/deposit", s.handleDeposit).Methods(http.MethodPost)
	api.HandleFunc("/liquidity/withdraw", s.handleWithdraw).Methods(http.MethodPost)
	api.HandleFunc("/trades/sell", s.handleSell).Methods(http.MethodPost)
	api.HandleFunc("/trades/buy", s.handleBuy).Methods(http.MethodPost)
	api.Handle("/credits/approve", s.requireAdmin(http.HandlerFunc(s.handleApprove))).Methods(http.MethodPost)

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(s.requireAdmin)
	admin.HandleFunc("/bind-shares", s.handleBindShares).Methods(http.MethodPost)
	admin.HandleFunc("/sweep", s.handleSweep).Methods(http.MethodPost)

	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
}

// Handler returns the router wrapped with CORS.
func (s *Server) Handler() http.Handler {
	origins := s.cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader},
	})
	return c.Handler(s.router)
}

// requestID tags every request with an ID, echoed in the response and logs.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		start := time.Now()
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
		s.logger.Debug("request",
			zap.String("request_id", id),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

// requireAdmin admits requests carrying the configured bearer token. Callers
// named in the body of these routes are only trusted once the token matched.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if s.cfg.AdminToken == "" || !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.AdminToken)) != 1 {
			s.logger.Warn("admin request rejected",
				zap.String("request_id", requestIDFrom(r.Context())),
				zap.String("path", r.URL.Path),
			)
			respondJSON(w, http.StatusForbidden, ErrorResponse{
				Error:     errorLabel(http.StatusForbidden),
				Message:   errAdminToken.Error(),
				RequestID: requestIDFrom(r.Context()),
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

var errAdminToken = errors.New("missing or invalid admin token")

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, out interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

var errBadRequest = errors.New("bad request")

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if errors.Is(err, errBadRequest) {
		status = http.StatusBadRequest
	}
	id := requestIDFrom(r.Context())
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("request_id", id), zap.String("path", r.URL.Path), zap.Error(err))
	}
	respondJSON(w, status, ErrorResponse{
		Error:     errorLabel(status),
		Message:   err.Error(),
		RequestID: id,
	})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
