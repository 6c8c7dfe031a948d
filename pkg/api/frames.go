package api

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/psantana5/lumirender/pkg/framestore"
	"github.com/psantana5/lumirender/pkg/models"
)

// FrameInfo describes one stored frame
type FrameInfo struct {
	Index  int   `json:"index"`
	TimeMS int64 `json:"time_ms"`
}

type framesResponse struct {
	Store  string      `json:"store"`
	Frames []FrameInfo `json:"frames"`
	Count  int         `json:"count"`
}

// storeFor picks the memory store or, with ?store=archive, the archive
func (h *Handler) storeFor(r *http.Request) (string, framestore.FrameStore, error) {
	switch name := r.URL.Query().Get("store"); name {
	case "", "memory":
		return "memory", h.sched.FrameStore(), nil
	case "archive":
		if a := h.sched.ArchiveStore(); a != nil {
			return name, a, nil
		}
		return name, nil, errors.New("no archive configured")
	default:
		return name, nil, fmt.Errorf("unknown store %q", name)
	}
}

// walkFrames visits frames in cursor order until fn returns false.
// Callers hold h.playMu.
func walkFrames(store framestore.FrameStore, fn func(index int, t time.Duration) bool) {
	store.Reset()
	for i := 0; ; i++ {
		t, ok := store.CurrentTime()
		if !ok || !fn(i, t) || !store.HasNext() {
			return
		}
		store.Next()
	}
}

// ListFrames returns the time of every stored frame
func (h *Handler) ListFrames(w http.ResponseWriter, r *http.Request) {
	name, store, err := h.storeFor(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	h.playMu.Lock()
	frames := make([]FrameInfo, 0, store.FrameCount())
	walkFrames(store, func(index int, t time.Duration) bool {
		frames = append(frames, FrameInfo{Index: index, TimeMS: t.Milliseconds()})
		return true
	})
	h.playMu.Unlock()

	writeJSON(w, http.StatusOK, framesResponse{Store: name, Frames: frames, Count: len(frames)})
}

// GetFrame returns one stored frame as PNG
func (h *Handler) GetFrame(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil || index < 0 {
		http.Error(w, "Invalid frame index", http.StatusBadRequest)
		return
	}
	_, store, err := h.storeFor(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	h.playMu.Lock()
	found := false
	walkFrames(store, func(i int, t time.Duration) bool {
		found = i == index
		return !found
	})
	var (
		rec models.FrameRecord
		ok  bool
	)
	if found {
		rec, ok = store.CurrentFrame()
	}
	h.playMu.Unlock()

	if !ok {
		http.Error(w, fmt.Sprintf("Frame %d not found", index), http.StatusNotFound)
		return
	}

	var buf bytes.Buffer
	if err := framestore.EncodePNG(&buf, rec.Pixels, rec.Width, rec.Height); err != nil {
		h.logger.Error("Failed to encode frame", map[string]interface{}{
			"index": index,
			"error": err.Error(),
		})
		http.Error(w, "Failed to encode frame", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("X-Frame-Time-Ms", strconv.FormatInt(rec.Time.Milliseconds(), 10))
	w.Write(buf.Bytes())
}
