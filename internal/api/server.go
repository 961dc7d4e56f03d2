// Package api exposes the chat endpoints over HTTP and the tools over MCP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cactux/cactux/internal/chat"
	"github.com/cactux/cactux/internal/logging"
	"github.com/cactux/cactux/internal/storage"
)

const (
	DefaultMaxBodyBytes   = 4 << 20
	DefaultRequestTimeout = 300 * time.Second
)

// Error bodies returned before a stream starts.
const (
	msgNoUserMessage = "No se encontró mensajes del usuario"
	msgInternal      = "An error occurred while processing your request!"
)

// HistoryStore reads back stored chats.
type HistoryStore interface {
	GetChatByID(ctx context.Context, id string) (*storage.Chat, error)
	ListMessages(ctx context.Context, chatID string) ([]storage.Message, error)
}

// Deps holds what the HTTP surface needs. Zero limits select the defaults.
type Deps struct {
	Chat           *chat.Orchestrator
	History        HistoryStore
	Token          string
	MaxBodyBytes   int64
	RequestTimeout time.Duration
	Log            *logging.Logger
}

// NewHandler builds the router.
func NewHandler(d Deps) http.Handler {
	if d.MaxBodyBytes <= 0 {
		d.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = DefaultRequestTimeout
	}
	if d.Log == nil {
		d.Log = logging.Nop()
	}
	log := d.Log.Sub("api")

	r := chi.NewRouter()
	r.Use(cors)
	r.Use(logging.Middleware(log))

	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		if d.Token != "" {
			r.Use(BearerAuth(d.Token))
		}
		r.Options("/api/chat", handleOptions)
		r.Post("/api/chat", handleChat(d, log))
		r.Get("/api/chats/{id}", handleHistory(d.History, log))
	})

	return r
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		next.ServeHTTP(w, r)
	})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleOptions(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{}`))
}

func handleChat(d Deps, log *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), d.RequestTimeout)
		defer cancel()

		r.Body = http.MaxBytesReader(w, r.Body, d.MaxBodyBytes)
		defer r.Body.Close()

		var req chat.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Debug().Err(err).Msg("invalid chat body")
			writeError(w, http.StatusBadRequest, msgNoUserMessage)
			return
		}

		turn, err := d.Chat.Prepare(ctx, req)
		if errors.Is(err, chat.ErrNoUserMessage) {
			writeError(w, http.StatusBadRequest, msgNoUserMessage)
			return
		}
		if err != nil {
			log.Error().Err(err).Str("chat", req.ID).Msg("preparing chat turn")
			writeError(w, http.StatusInternalServerError, msgInternal)
			return
		}

		chat.SetStreamHeaders(w.Header())
		w.WriteHeader(http.StatusOK)
		if err := turn.Stream(ctx, w); err != nil {
			log.Warn().Err(err).Str("chat", req.ID).Msg("stream ended with error")
		}
	}
}

type historyResponse struct {
	Chat     *storage.Chat     `json:"chat"`
	Messages []storage.Message `json:"messages"`
}

func handleHistory(store HistoryStore, log *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			writeError(w, http.StatusNotFound, "chat not found")
			return
		}
		id := chi.URLParam(r, "id")
		c, err := store.GetChatByID(r.Context(), id)
		if err != nil {
			log.Error().Err(err).Str("chat", id).Msg("loading chat")
			writeError(w, http.StatusInternalServerError, msgInternal)
			return
		}
		if c == nil {
			writeError(w, http.StatusNotFound, "chat not found")
			return
		}
		msgs, err := store.ListMessages(r.Context(), id)
		if err != nil {
			log.Error().Err(err).Str("chat", id).Msg("listing messages")
			writeError(w, http.StatusInternalServerError, msgInternal)
			return
		}
		if msgs == nil {
			msgs = []storage.Message{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(historyResponse{Chat: c, Messages: msgs})
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
