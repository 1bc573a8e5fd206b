// Package httpevents expone el engine de asignación por HTTP: eventos de
// perfil y capacidad que llegan de otros sistemas, lectura del roster,
// health y métricas.
package httpevents

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/jose-valero/squad-allocator-bot/internal/app/allocation"
)

const (
	SecretHeader  = "X-Events-Secret"
	EventIDHeader = "X-Event-ID"

	maxBody = 1 << 20
)

// Deduper descarta eventos repetidos (reintentos del emisor).
// Lo implementan storage.DedupRepo y memstore.Dedup.
type Deduper interface {
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

type pruner interface {
	Prune(ctx context.Context, maxAge time.Duration) (int64, error)
}

type Server struct {
	secret   string
	engine   *allocation.Engine
	dedup    Deduper
	metrics  http.Handler
	onChange func(guildID string)
	log      *zap.Logger
	mux      *http.ServeMux
}

type Option func(*Server)

func WithDedup(d Deduper) Option { return func(s *Server) { s.dedup = d } }

func WithMetricsHandler(h http.Handler) Option { return func(s *Server) { s.metrics = h } }

// WithOnChange se llama después de cada evento que modificó un guild.
func WithOnChange(fn func(guildID string)) Option { return func(s *Server) { s.onChange = fn } }

func New(secret string, engine *allocation.Engine, log *zap.Logger, opts ...Option) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{secret: secret, engine: engine, log: log.Named("http"), mux: http.NewServeMux()}
	for _, o := range opts {
		o(s)
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics)
	}
	s.mux.HandleFunc("POST /events/profile", s.auth(s.dedupe(s.handleProfile)))
	s.mux.HandleFunc("POST /events/max-parties", s.auth(s.dedupe(s.handleMaxParties)))
	s.mux.HandleFunc("POST /events/rebalance", s.auth(s.dedupe(s.handleRebalance)))
	s.mux.HandleFunc("GET /guilds/{id}/roster", s.auth(s.handleRoster))
}

func (s *Server) Handler() http.Handler { return s.mux }

// Start bloquea hasta que ctx se cancele o el listener falle.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()
	s.log.Info("http listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// RunDedupPrune borra cada every las claves de dedup más viejas que maxAge.
// Bloquea hasta que ctx se cancele; si el Deduper no sabe podar, vuelve enseguida.
func (s *Server) RunDedupPrune(ctx context.Context, every, maxAge time.Duration) {
	p, ok := s.dedup.(pruner)
	if !ok || every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := p.Prune(ctx, maxAge)
			if err != nil {
				s.log.Warn("dedup prune", zap.Error(err))
				continue
			}
			if n > 0 {
				s.log.Info("dedup pruned", zap.Int64("keys", n))
			}
		}
	}
}

func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get(SecretHeader)
		if s.secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(s.secret)) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	}
}

// dedupe descarta reintentos de un evento que ya se aplicó. Solo aplica si el
// emisor manda X-Event-ID: dos eventos con el mismo contenido pueden ser
// legítimos (un CP que vuelve a su valor anterior). Si el handler no
// responde 2xx la clave se libera y el reintento vuelve a correr.
func (s *Server) dedupe(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBody)
		key := r.Header.Get(EventIDHeader)
		if s.dedup == nil || key == "" {
			next(w, r)
			return
		}

		first, err := s.dedup.Claim(r.Context(), key)
		if err != nil {
			s.log.Warn("dedup claim", zap.String("event_id", key), zap.Error(err))
		} else if !first {
			s.log.Debug("duplicate event", zap.String("event_id", key))
			writeJSON(w, http.StatusOK, map[string]bool{"ok": true, "duplicate": true})
			return
		}

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next(sw, r)
		if err == nil && (sw.status < 200 || sw.status >= 300) {
			if rerr := s.dedup.Release(context.WithoutCancel(r.Context()), key); rerr != nil {
				s.log.Warn("dedup release", zap.String("event_id", key), zap.Error(rerr))
			}
		}
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	var evt profileEvent
	if !decode(w, r, &evt) {
		return
	}
	if evt.GuildID == "" || evt.UserID == "" {
		writeError(w, http.StatusBadRequest, "guild_id and user_id are required")
		return
	}
	res, err := s.engine.UpdateProfile(r.Context(), allocation.ProfileUpdate{
		GuildID: evt.GuildID,
		UserID:  evt.UserID,
		Weapon1: evt.Weapon1,
		Weapon2: evt.Weapon2,
		CP:      evt.CP,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.changed(evt.GuildID)
	out := profileResponse{Player: toPlayerDTO(res.Player), Moved: res.Moved}
	if res.Outcome != nil {
		o := toOutcomeDTO(*res.Outcome)
		out.Outcome = &o
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleMaxParties(w http.ResponseWriter, r *http.Request) {
	var evt maxPartiesEvent
	if !decode(w, r, &evt) {
		return
	}
	if evt.GuildID == "" {
		writeError(w, http.StatusBadRequest, "guild_id is required")
		return
	}
	res, err := s.engine.SetMaxParties(r.Context(), evt.GuildID, evt.MaxParties)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.changed(evt.GuildID)
	writeJSON(w, http.StatusOK, capacityResponse{
		OldMax:    res.OldMax,
		NewMax:    res.NewMax,
		Created:   res.Created,
		Disbanded: res.Disbanded,
		Promoted:  res.Drain.Promoted,
	})
}

func (s *Server) handleRebalance(w http.ResponseWriter, r *http.Request) {
	var evt rebalanceEvent
	if !decode(w, r, &evt) {
		return
	}
	if evt.GuildID == "" {
		rep, err := s.engine.RebalanceAll(r.Context(), evt.Force)
		out := batchResponse{Ran: rep.Ran, Skipped: rep.Skipped, Failed: map[string]string{}}
		for g, e := range rep.Failed {
			out.Failed[g] = e.Error()
		}
		for _, g := range rep.Ran {
			s.changed(g)
		}
		status := http.StatusOK
		if err != nil {
			s.log.Warn("batch rebalance", zap.Error(err))
			status = http.StatusMultiStatus
		}
		writeJSON(w, status, out)
		return
	}
	rep, err := s.engine.Rebalance(r.Context(), evt.GuildID, evt.Force)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.changed(evt.GuildID)
	writeJSON(w, http.StatusOK, rebalanceResponse{
		RunID:    rep.RunID,
		Moved:    rep.Moved,
		Overflow: rep.Overflow,
		Promoted: rep.Drain.Promoted,
		Repaired: !rep.Reconcile.Clean(),
	})
}

func (s *Server) handleRoster(w http.ResponseWriter, r *http.Request) {
	guildID := r.PathValue("id")
	roster, err := s.engine.Roster(r.Context(), guildID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRosterDTO(guildID, roster))
}

func (s *Server) changed(guildID string) {
	if s.onChange != nil {
		s.onChange(guildID)
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= 500 {
		s.log.Error("event failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, allocation.ErrInvalidMaxParties),
		errors.Is(err, allocation.ErrInvalidMaxHealers),
		errors.Is(err, allocation.ErrInvalidCP):
		return http.StatusBadRequest
	case errors.Is(err, allocation.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, allocation.ErrDebounced):
		return http.StatusConflict
	case errors.Is(err, allocation.ErrIncompleteProfile),
		errors.Is(err, allocation.ErrAutoAssignDisabled),
		errors.Is(err, allocation.ErrAlreadyPlaced),
		errors.Is(err, allocation.ErrNotInReserve):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
