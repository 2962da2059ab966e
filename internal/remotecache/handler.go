// Package remotecache is the shared POI cache reached over a WebSocket: the
// server side (Handler, Store) and the client side (Client).
//
// Each binary message is one wire request. A read request is answered with a
// binary grouped reply, a write request with the text message "true". A
// request that cannot be served gets a JSON text message carrying "error".
package remotecache

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/mohammed-shakir/poi-tile-cache/internal/codec/wire"
	"github.com/mohammed-shakir/poi-tile-cache/internal/core/observability"
	"github.com/mohammed-shakir/poi-tile-cache/internal/logger"
)

const (
	// Ack is the reply to a stored write batch.
	Ack = "true"

	maxMessageBytes = 64 << 20
)

// ErrorReply is the text message sent when a request fails.
type ErrorReply struct {
	Error string `json:"error"`
}

var failedReply = mustMarshal(ErrorReply{Error: "Failed to process message"})

func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

// Backend serves decoded requests.
type Backend interface {
	Read(ctx context.Context, ids [][]byte) ([]wire.Group, error)
	Write(ctx context.Context, entries []wire.Entry) (int, error)
}

type Handler struct {
	backend  Backend
	log      *slog.Logger
	upgrader websocket.Upgrader
}

func NewHandler(b Backend, log *slog.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{
		backend: b,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  32 << 10,
			WriteBufferSize: 32 << 10,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		http.Error(w, "Expected Upgrade: websocket", http.StatusUpgradeRequired)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied
		h.log.WarnContext(r.Context(), "websocket upgrade failed", "err", err)
		return
	}
	defer func() { _ = conn.Close() }()
	conn.SetReadLimit(maxMessageBytes)

	ctx := logger.WithComponent(r.Context(), "remotecache")
	if n, ok := h.backend.(interface{ Prefix() string }); ok {
		ctx = logger.WithCache(ctx, n.Prefix())
	}
	for {
		typ, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.WarnContext(ctx, "websocket read failed", "err", err)
			}
			return
		}
		if typ != websocket.BinaryMessage {
			continue
		}

		replyType, reply := h.serve(ctx, msg)
		if err := conn.WriteMessage(replyType, reply); err != nil {
			h.log.WarnContext(ctx, "websocket write failed", "err", err)
			return
		}
	}
}

func (h *Handler) serve(ctx context.Context, msg []byte) (int, []byte) {
	start := time.Now()
	mode, err := wire.PeekMode(msg)
	if err != nil {
		observability.ObserveRemote("unknown", err, time.Since(start).Seconds())
		h.log.WarnContext(ctx, "bad request frame", "err", err)
		return websocket.TextMessage, failedReply
	}

	switch mode {
	case wire.ModeRead:
		reply, err := h.read(ctx, msg)
		observability.ObserveRemote("read", err, time.Since(start).Seconds())
		if err != nil {
			h.log.ErrorContext(ctx, "read batch failed", "err", err)
			return websocket.TextMessage, failedReply
		}
		return websocket.BinaryMessage, reply
	default:
		err := h.write(ctx, msg)
		observability.ObserveRemote("write", err, time.Since(start).Seconds())
		if err != nil {
			h.log.ErrorContext(ctx, "write batch failed", "err", err)
			return websocket.TextMessage, failedReply
		}
		return websocket.TextMessage, []byte(Ack)
	}
}

func (h *Handler) read(ctx context.Context, msg []byte) ([]byte, error) {
	ids, err := wire.DecodeReadBatch(msg)
	if err != nil {
		return nil, err
	}
	groups, err := h.backend.Read(ctx, ids)
	if err != nil {
		return nil, err
	}
	h.log.DebugContext(ctx, "read batch", "ids", len(ids), "found", len(groups))
	return wire.EncodeGroupedResponse(groups)
}

func (h *Handler) write(ctx context.Context, msg []byte) error {
	entries, err := wire.DecodeWriteBatch(msg)
	if err != nil {
		return err
	}
	changed, err := h.backend.Write(ctx, entries)
	if err != nil {
		return err
	}
	h.log.DebugContext(ctx, "write batch", "entries", len(entries), "changed", changed)
	return nil
}
