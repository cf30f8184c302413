package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/idilsaglam/todosync/internal/auth"
	"github.com/idilsaglam/todosync/internal/docstore"
)

const (
	maxBodyBytes = 1 << 20
	pingInterval = 30 * time.Second
	pongWait     = 2 * pingInterval
	writeWait    = 10 * time.Second
)

// Server exposes a docstore.Backend over HTTP, with live queries on a WebSocket.
type Server struct {
	backend   docstore.Backend
	tokenHash string
	log       *slog.Logger
	router    *mux.Router
	upgrader  websocket.Upgrader
}

// ServerOption tunes a Server.
type ServerOption func(*Server)

// WithTokenHash requires clients to send a bearer token matching the bcrypt hash.
func WithTokenHash(hash string) ServerOption { return func(s *Server) { s.tokenHash = hash } }

func WithServerLogger(l *slog.Logger) ServerOption { return func(s *Server) { s.log = l } }

func NewServer(b docstore.Backend, opts ...ServerOption) *Server {
	s := &Server{
		backend: b,
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  32 * 1024,
			WriteBufferSize: 32 * 1024,
		},
	}
	for _, o := range opts {
		o(s)
	}
	s.router = s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods("GET")

	api := r.PathPrefix("/v1").Subrouter()
	api.Use(s.requireToken)
	api.HandleFunc("/collections/{collection}/documents/{id}", s.handleGet).Methods("GET")
	api.HandleFunc("/query", s.handleQuery).Methods("POST")
	api.HandleFunc("/commit", s.handleCommit).Methods("POST")
	api.HandleFunc("/listen", s.handleListen).Methods("GET")
	return r
}

// ListenAndServe runs until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.log.Info("document server listening", "addr", addr, "auth", s.tokenHash != "")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.tokenHash != "" && !auth.CheckToken(s.tokenHash, auth.BearerToken(r.Header.Get("Authorization"))) {
			s.log.Warn("rejected request", "path", r.URL.Path, "remote", r.RemoteAddr)
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing or invalid token", Code: codeUnauthorized})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	doc, err := s.backend.Lookup(r.Context(), vars["collection"], vars["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var q docstore.QuerySpec
	if err := decodeBody(r, &q); err != nil {
		s.writeError(w, r, err)
		return
	}
	docs, err := s.backend.RunQuery(r.Context(), q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, queryResponse{Documents: docs})
}

func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	var req commitRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	writes := make([]docstore.Write, 0, len(req.Writes))
	for _, wr := range req.Writes {
		v, err := wr.Validate()
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writes = append(writes, v)
	}
	t, err := s.backend.Commit(r.Context(), writes)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, commitResponse{CommitTime: t})
}

// handleListen streams query results. The first client frame is the query;
// after that the client only needs to keep reading (and answer pings).
func (s *Server) handleListen(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	var q docstore.QuerySpec
	if err := conn.ReadJSON(&q); err != nil {
		s.log.Warn("read listen request", "error", err)
		return
	}

	frames := make(chan listenFrame, 1)
	push := func(f listenFrame) {
		// Keep only the newest frame when the client lags behind.
		select {
		case frames <- f:
		default:
			select {
			case <-frames:
			default:
			}
			select {
			case frames <- f:
			default:
			}
		}
	}
	stop, err := s.backend.Listen(q,
		func(docs []docstore.Document) { push(listenFrame{Documents: docs}) },
		func(err error) { push(listenFrame{Error: err.Error()}) },
	)
	if err != nil {
		_ = conn.WriteJSON(listenFrame{Error: err.Error()})
		return
	}
	defer stop()
	s.log.Info("listener attached", "collection", q.Collection, "remote", r.RemoteAddr)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Reader: only control frames are expected; any error means the client left.
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Info("listener detached", "collection", q.Collection, "remote", r.RemoteAddr)
			return
		case f := <-frames:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(f); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	if status >= 500 {
		s.log.Error("request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Code: code})
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return errors.Join(docstore.ErrInvalidArgument, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
