package philjs

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/philjs-dev/philjs/pkg/isr"
)

// statusResponse is the payload of GET /_philjs/status.
type statusResponse struct {
	Name      string       `json:"name,omitempty"`
	Uptime    string       `json:"uptime"`
	Adapter   string       `json:"adapter"`
	Paths     int          `json:"paths"`
	QueueLen  int          `json:"queueLen"`
	Tags      []string     `json:"tags,omitempty"`
	Entries   []entryState `json:"entries,omitempty"`
	DevClient int          `json:"devClients,omitempty"`
}

// entryState summarizes one cached path.
type entryState struct {
	Path          string    `json:"path"`
	Status        string    `json:"status"`
	RevalidatedAt time.Time `json:"revalidatedAt"`
	Regenerations int       `json:"regenerations"`
	Tags          []string  `json:"tags,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// handleRevalidate enqueues a high-priority regeneration for ?path=.
// ?force=true regenerates even if the entry is still fresh.
func (a *App) handleRevalidate(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeJSONError(w, http.StatusBadRequest, "path query parameter is required")
		return
	}
	force := r.URL.Query().Get("force") == "true"

	err := a.rev.Revalidate(context.WithoutCancel(r.Context()), isr.Request{
		Path:     path,
		Priority: isr.PriorityHigh,
		Force:    force,
	})
	if err != nil {
		a.logger.Error("revalidate request rejected", "path", path, "error", err)
		writeJSONError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"queued": path})
}

// handleInvalidate drops every cached path carrying ?tag=. A trailing *
// in the tag is treated as a glob.
func (a *App) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	tag := r.URL.Query().Get("tag")
	if tag == "" {
		writeJSONError(w, http.StatusBadRequest, "tag query parameter is required")
		return
	}

	if containsGlob(tag) {
		results, err := a.tags.InvalidateTagPattern(r.Context(), tag)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, results)
		return
	}

	result, err := a.tags.InvalidateTag(r.Context(), tag)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	status := http.StatusOK
	if !result.Success {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, result)
}

// handleStatus reports cache and queue state.
func (a *App) handleStatus(w http.ResponseWriter, r *http.Request) {
	keys, err := a.cache.Keys(r.Context())
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := statusResponse{
		Name:     a.settings.Name,
		Uptime:   time.Since(a.started).Round(time.Second).String(),
		Adapter:  a.settings.Cache.Adapter,
		Paths:    len(keys),
		QueueLen: a.rev.QueueLen(),
		Tags:     a.tags.Tags(),
	}
	if a.feed != nil {
		resp.DevClient = a.feed.ClientCount()
	}
	for _, key := range keys {
		meta, err := a.cache.Adapter().GetMeta(r.Context(), key)
		if err != nil || meta == nil {
			continue
		}
		// Stored status says "fresh" until the next regeneration touches the
		// entry; staleness is a function of time and derived here.
		status := meta.Status
		if status == isr.StatusFresh && a.cache.IsStale(&isr.Entry{Meta: *meta}) {
			status = isr.StatusStale
		}
		resp.Entries = append(resp.Entries, entryState{
			Path:          meta.Path,
			Status:        string(status),
			RevalidatedAt: meta.RevalidatedAt,
			Regenerations: meta.RegenerationCount,
			Tags:          meta.Tags,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func containsGlob(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == '*' {
			return true
		}
	}
	return false
}
