package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rs/cors"

	"apptbook/internal/app"
	"apptbook/internal/booking"
	"apptbook/internal/config"
	"apptbook/internal/conflict"
	appLog "apptbook/internal/log"
)

const maxBodyBytes = 64 << 10

// Server exposes the booking pipeline over HTTP.
type Server struct {
	app *app.App
	cfg *config.Config
	mux *http.ServeMux
}

// NewServer constructs a new Server.
func NewServer(a *app.App) *Server {
	s := &Server{
		app: a,
		cfg: a.Config,
		mux: http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the mux wrapped in CORS, rate limiting and basic auth.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		h = s.basicAuthMiddleware(h)
	}
	if s.cfg.RateLimit.PerMinute > 0 {
		h = newRateLimiter(s.cfg.RateLimit.PerMinute, s.cfg.RateLimit.Burst).middleware(h)
	}
	if len(s.cfg.CORSOrigins) > 0 {
		h = cors.New(cors.Options{
			AllowedOrigins:   s.cfg.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Content-Type", "Authorization"},
			AllowCredentials: true,
		}).Handler(h)
	}
	return logRequests(h)
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// An empty username or password disables auth.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="apptbook", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		appLog.Debug("http request", "method", r.Method, "path", r.URL.Path,
			"status", rec.status, "duration", time.Since(start).String())
	})
}

// Run serves until ctx is canceled, then shuts down gracefully.
func Run(ctx context.Context, a *app.App) error {
	s := NewServer(a)
	srv := &http.Server{
		Addr:              a.Config.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// Writes wait on the calendar backend.
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+a.Config.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /api/bookings", s.handleBook)
	s.mux.HandleFunc("GET /api/slots/{date}", s.handleSlots)
	s.mux.HandleFunc("GET /api/events", s.handleEvents)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleBook runs one booking attempt and answers with the outcome.
//
// POST /api/bookings {"date":"2024-07-15","time":"10:30 AM","serviceLabel":"Haircut","freeText":"..."}
func (s *Server) handleBook(w http.ResponseWriter, r *http.Request) {
	var req booking.Request
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	out := s.app.Pipeline.Book(r.Context(), req)
	writeJSON(w, outcomeStatus(out), out)
}

// outcomeStatus maps an outcome onto an HTTP status. The body always
// carries the full outcome.
func outcomeStatus(o booking.Outcome) int {
	switch o.Status {
	case booking.StatusBooked:
		return http.StatusCreated
	case booking.StatusFailed:
		return http.StatusBadGateway
	}
	switch o.Reason {
	case booking.ReasonConflictDetected:
		return http.StatusConflict
	case booking.ReasonConflictCheckUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusUnprocessableEntity
	}
}

type slotDTO struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type slotsResponse struct {
	Date            string    `json:"date"`
	TimeZone        string    `json:"timezone"`
	DurationMinutes int       `json:"duration_minutes"`
	Slots           []slotDTO `json:"slots"`
}

// handleSlots lists free slots within business hours.
//
// GET /api/slots/2024-07-15
func (s *Server) handleSlots(w http.ResponseWriter, r *http.Request) {
	date := r.PathValue("date")
	free, err := s.app.Slots(r.Context(), date)
	if err != nil {
		s.writeLookupError(w, "slots", date, err)
		return
	}

	resp := slotsResponse{
		Date:            date,
		TimeZone:        s.cfg.Location().String(),
		DurationMinutes: int(s.app.Pipeline.ServiceDuration() / time.Minute),
		Slots:           make([]slotDTO, 0, len(free)),
	}
	for _, f := range free {
		resp.Slots = append(resp.Slots, slotDTO{Start: f.Start, End: f.End})
	}
	writeJSON(w, http.StatusOK, resp)
}

// occurrenceDTO is a JSON-friendly view of a resolved event.
type occurrenceDTO struct {
	ID      string    `json:"id"`
	Summary string    `json:"summary"`
	AllDay  bool      `json:"all_day"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
}

type eventsResponse struct {
	Date     string          `json:"date"`
	TimeZone string          `json:"timezone"`
	Events   []occurrenceDTO `json:"events"`
}

// handleEvents lists the events overlapping one day.
//
// GET /api/events?date=2024-07-15
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		writeError(w, http.StatusBadRequest, "date query parameter is required")
		return
	}
	occs, err := s.app.Events(r.Context(), date)
	if err != nil {
		s.writeLookupError(w, "events", date, err)
		return
	}

	resp := eventsResponse{
		Date:     date,
		TimeZone: s.cfg.Location().String(),
		Events:   make([]occurrenceDTO, 0, len(occs)),
	}
	for _, o := range occs {
		resp.Events = append(resp.Events, occurrenceDTO{
			ID:      o.ID,
			Summary: o.Summary,
			AllDay:  o.AllDay,
			Start:   o.Start,
			End:     o.End,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type lookupErrorResponse struct {
	Error   string `json:"error"`
	Failure string `json:"failure,omitempty"`
}

// writeLookupError answers a failed read. A calendar that cannot be read
// never yields a guessed answer.
func (s *Server) writeLookupError(w http.ResponseWriter, what, date string, err error) {
	var cerr *conflict.CheckError
	if errors.As(err, &cerr) {
		appLog.Warn("calendar lookup failed", "what", what, "date", date, "failure", cerr.Reason, "err", cerr.Err)
		writeJSON(w, http.StatusServiceUnavailable, lookupErrorResponse{Error: err.Error(), Failure: string(cerr.Reason)})
		return
	}
	writeError(w, http.StatusBadRequest, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
