package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"subdash/cmd/internal/auth/session"
)

const wsWriteTimeout = 5 * time.Second

// handleActivityWS streams the session's activity log over a websocket:
// a snapshot on connect, then new entries as they appear.
//
// The feed polls the session under its lock on the configured interval;
// entry ULIDs are time-ordered, so "new" is anything past the last sent ID.
// The socket closes when the session logs out, expires, or the client leaves.
func (h *Handler) handleActivityWS(w http.ResponseWriter, r *http.Request) {
	entry, expired := h.checkedSession(w, r)
	if expired {
		writeError(w, http.StatusUnauthorized, "session_expired", session.MsgSessionExpired)
		return
	}
	if entry == nil {
		writeError(w, http.StatusUnauthorized, "not_signed_in", session.DenyNotSignedIn)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.log.Warn("api.activity_ws.accept.fail", "err", err)
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()

	lastID, ok := h.sendActivitySince(ctx, conn, entry, "")
	if !ok {
		return
	}

	ticker := time.NewTicker(h.cfg.FeedInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		case <-ticker.C:
			entry.mu.Lock()
			alive := entry.svc.State().Authenticated()
			entry.mu.Unlock()
			if !alive {
				_ = conn.Close(websocket.StatusNormalClosure, "session ended")
				return
			}

			if lastID, ok = h.sendActivitySince(ctx, conn, entry, lastID); !ok {
				return
			}
		}
	}
}

// sendActivitySince writes every entry with ID > afterID and returns the new
// high-water mark. ok is false once the connection is unusable.
func (h *Handler) sendActivitySince(ctx context.Context, conn *websocket.Conn, entry *sessionEntry, afterID string) (lastID string, ok bool) {
	entry.mu.Lock()
	acts := entry.svc.State().Activity()
	entry.mu.Unlock()

	lastID = afterID
	for _, a := range acts {
		if a.ID <= afterID {
			continue
		}

		buf, err := json.Marshal(activityEntryResponse{
			ID:      a.ID,
			At:      a.At,
			Action:  a.Action,
			Details: a.Details,
		})
		if err != nil {
			continue
		}

		wctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
		err = conn.Write(wctx, websocket.MessageText, buf)
		cancel()
		if err != nil {
			return lastID, false
		}
		lastID = a.ID
	}
	return lastID, true
}
