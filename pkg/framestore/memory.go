package framestore

import (
	"sort"
	"sync"
	"time"

	"github.com/psantana5/lumirender/pkg/models"
)

// MemoryFrameStore keeps full-resolution copies of every frame in RAM,
// ordered by time. Memory grows without bound; it trades that for instant
// scrubbing.
type MemoryFrameStore struct {
	mu      sync.RWMutex
	frames  []models.FrameRecord // Sorted by Time; equal times keep dump order
	current int
}

// NewMemoryFrameStore creates an empty in-memory store
func NewMemoryFrameStore() *MemoryFrameStore {
	return &MemoryFrameStore{}
}

// Dump inserts a copy of the frame in time order
func (s *MemoryFrameStore) Dump(t time.Duration, pixels []float32, width, height int) error {
	if err := models.ValidateBuffer(pixels, width, height); err != nil {
		return err
	}

	record := models.FrameRecord{
		Time:   t,
		Pixels: copyPixels(pixels),
		Width:  width,
		Height: height,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// First index with a strictly later time, so equal times append after
	// the ones already stored.
	i := sort.Search(len(s.frames), func(i int) bool {
		return s.frames[i].Time > t
	})
	s.frames = append(s.frames, models.FrameRecord{})
	copy(s.frames[i+1:], s.frames[i:])
	s.frames[i] = record
	return nil
}

// Reset moves the cursor to the first frame
func (s *MemoryFrameStore) Reset() {
	s.mu.Lock()
	s.current = 0
	s.mu.Unlock()
}

// Next advances the cursor; no-op at the end
func (s *MemoryFrameStore) Next() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current+1 < len(s.frames) {
		s.current++
	}
}

// HasNext reports whether a frame follows the cursor
func (s *MemoryFrameStore) HasNext() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.current+1 < len(s.frames)
}

// CurrentFrameBuffer returns a copy of the pixels under the cursor
func (s *MemoryFrameStore) CurrentFrameBuffer() ([]float32, bool) {
	rec, ok := s.CurrentFrame()
	if !ok {
		return nil, false
	}
	return rec.Pixels, true
}

// CurrentFrame returns a copy of the record under the cursor
func (s *MemoryFrameStore) CurrentFrame() (models.FrameRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current >= len(s.frames) {
		return models.FrameRecord{}, false
	}
	rec := s.frames[s.current]
	rec.Pixels = copyPixels(rec.Pixels)
	return rec, true
}

// CurrentTime returns the time of the frame under the cursor
func (s *MemoryFrameStore) CurrentTime() (time.Duration, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current >= len(s.frames) {
		return 0, false
	}
	return s.frames[s.current].Time, true
}

// NextTime returns the time of the frame after the cursor without moving it
func (s *MemoryFrameStore) NextTime() (time.Duration, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current+1 >= len(s.frames) {
		return 0, false
	}
	return s.frames[s.current+1].Time, true
}

// Clear drops every frame and resets the cursor
func (s *MemoryFrameStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.frames = nil
	s.current = 0
	return nil
}

// IsEmpty reports whether no frame is stored
func (s *MemoryFrameStore) IsEmpty() bool {
	return s.FrameCount() == 0
}

// FrameCount returns the number of stored frames
func (s *MemoryFrameStore) FrameCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.frames)
}

// Times returns every stored time in order
func (s *MemoryFrameStore) Times() []time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]time.Duration, len(s.frames))
	for i, f := range s.frames {
		out[i] = f.Time
	}
	return out
}

// Frame returns a copy of the i-th frame in time order
func (s *MemoryFrameStore) Frame(i int) (models.FrameRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i < 0 || i >= len(s.frames) {
		return models.FrameRecord{}, false
	}
	rec := s.frames[i]
	rec.Pixels = copyPixels(rec.Pixels)
	return rec, true
}

// Close releases the frames
func (s *MemoryFrameStore) Close() error {
	return s.Clear()
}
