package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"mmo-avatar/internal/game"
	"mmo-avatar/internal/persist"
)

// Handler methods for routerHandlers. They only read published views and
// concurrent-safe stores; nothing here touches the tick goroutine's state.

func (h *routerHandlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"status": "ok"})
}

func (h *routerHandlers) handleListAvatars(w http.ResponseWriter, r *http.Request) {
	online := []game.AvatarView{}
	if v := h.engine.View(); v != nil {
		online = v.Avatars
	}
	resp := map[string]any{"online": online}

	if r.URL.Query().Get("saved") != "" && h.store != nil {
		limit := queryInt(r, "limit", 100, 1000)
		saved, err := h.store.List(r.Context(), limit)
		if err != nil {
			h.log.Error("list saved avatars", zap.Error(err))
			writeError(w, "store unavailable", http.StatusInternalServerError)
			return
		}
		if saved == nil {
			saved = []persist.Summary{}
		}
		resp["saved"] = saved
	}
	writeJSON(w, resp)
}

func (h *routerHandlers) handleGetAvatar(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if v := h.engine.View(); v != nil {
		if a, ok := v.Avatar(name); ok {
			writeJSON(w, map[string]any{"online": true, "avatar": a})
			return
		}
	}
	if h.store == nil {
		writeError(w, "avatar not found", http.StatusNotFound)
		return
	}
	snap, err := h.store.Get(r.Context(), name)
	if errors.Is(err, persist.ErrNotFound) {
		writeError(w, "avatar not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error("get saved avatar", zap.String("avatar", name), zap.Error(err))
		writeError(w, "store unavailable", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"online": false, "snapshot": snap})
}

func (h *routerHandlers) handleGetWorld(w http.ResponseWriter, r *http.Request) {
	v := h.engine.View()
	if v == nil {
		writeError(w, "world not ready", http.StatusServiceUnavailable)
		return
	}
	alive := 0
	for _, m := range v.Monsters {
		if m.Alive {
			alive++
		}
	}
	resp := map[string]any{
		"sequence":      v.Sequence,
		"timestamp":     v.Timestamp,
		"tick":          v.Tick,
		"online":        len(v.Avatars),
		"monsters":      v.Monsters,
		"monstersAlive": alive,
		"npcs":          v.Npcs,
		"grid":          v.Grid,
		"inbox":         v.Inbox,
	}
	if z := h.engine.Zone(); z != nil {
		resp["zone"] = z.Map().Name
	}
	writeJSON(w, resp)
}

func (h *routerHandlers) handleGetParties(w http.ResponseWriter, r *http.Request) {
	parties := []game.Party{}
	if pm := h.engine.Parties(); pm != nil {
		parties = pm.All()
	}
	writeJSON(w, parties)
}

func (h *routerHandlers) handleGetJournal(w http.ResponseWriter, r *http.Request) {
	j := h.engine.Journal()
	if j == nil {
		writeJSON(w, map[string]any{"entries": []game.JournalEntry{}})
		return
	}
	entries := j.Recent(queryInt(r, "limit", 50, game.JournalBufferSize))
	if entries == nil {
		entries = []game.JournalEntry{}
	}
	writeJSON(w, map[string]any{
		"entries": entries,
		"total":   j.Total(),
		"dropped": j.Dropped(),
	})
}

func (h *routerHandlers) handleMinimap(w http.ResponseWriter, r *http.Request) {
	z := h.engine.Zone()
	if z == nil {
		writeError(w, "no zone", http.StatusServiceUnavailable)
		return
	}
	scale := MinimapScale
	if s, err := strconv.ParseFloat(r.URL.Query().Get("scale"), 64); err == nil && s > 0 && s <= 16 {
		scale = s
	}
	var buf bytes.Buffer
	if err := RenderMinimap(&buf, z, h.engine.View(), scale); err != nil {
		h.log.Error("render minimap", zap.Error(err))
		writeError(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}

// Helper functions (package-level for reuse)

func queryInt(r *http.Request, key string, def, max int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
