package framestore

import (
	"testing"
	"time"
)

func solidFrame(w, h int, v float32) []float32 {
	p := make([]float32, w*h*4)
	for i := range p {
		p[i] = v
	}
	return p
}

func TestMemoryStoreOrdersByTime(t *testing.T) {
	s := NewMemoryFrameStore()

	for _, ms := range []int{200, 0, 100} {
		if err := s.Dump(time.Duration(ms)*time.Millisecond, solidFrame(2, 2, float32(ms)/1000), 2, 2); err != nil {
			t.Fatalf("Dump(%d) failed: %v", ms, err)
		}
	}

	var got []time.Duration
	s.Reset()
	for {
		ct, ok := s.CurrentTime()
		if !ok {
			t.Fatal("CurrentTime should be set on non-empty store")
		}
		got = append(got, ct)
		if !s.HasNext() {
			break
		}
		s.Next()
	}

	expected := []time.Duration{0, 100 * time.Millisecond, 200 * time.Millisecond}
	if len(got) != len(expected) {
		t.Fatalf("expected %d frames, got %v", len(expected), got)
	}
	for i := range expected {
		if got[i] != expected[i] {
			t.Errorf("frame %d: expected %v, got %v", i, expected[i], got[i])
		}
	}
}

func TestMemoryStoreEqualTimesKeepDumpOrder(t *testing.T) {
	s := NewMemoryFrameStore()
	_ = s.Dump(50*time.Millisecond, solidFrame(1, 1, 0.1), 1, 1)
	_ = s.Dump(50*time.Millisecond, solidFrame(1, 1, 0.2), 1, 1)

	first, _ := s.Frame(0)
	second, _ := s.Frame(1)
	if first.Pixels[0] != 0.1 || second.Pixels[0] != 0.2 {
		t.Errorf("equal-time frames reordered: %v, %v", first.Pixels[0], second.Pixels[0])
	}
}

func TestMemoryStoreCopiesBuffers(t *testing.T) {
	s := NewMemoryFrameStore()
	src := solidFrame(1, 1, 0.5)
	_ = s.Dump(0, src, 1, 1)

	src[0] = 0.9
	buf, ok := s.CurrentFrameBuffer()
	if !ok {
		t.Fatal("expected a current frame")
	}
	if buf[0] != 0.5 {
		t.Errorf("store aliased caller buffer: %v", buf[0])
	}

	buf[0] = 0.7
	again, _ := s.CurrentFrameBuffer()
	if again[0] != 0.5 {
		t.Errorf("store returned internal buffer: %v", again[0])
	}
}

func TestMemoryStoreEmptyCursor(t *testing.T) {
	s := NewMemoryFrameStore()

	if !s.IsEmpty() {
		t.Error("new store should be empty")
	}
	if _, ok := s.CurrentFrameBuffer(); ok {
		t.Error("CurrentFrameBuffer should report absence")
	}
	if _, ok := s.CurrentTime(); ok {
		t.Error("CurrentTime should report absence")
	}
	if _, ok := s.NextTime(); ok {
		t.Error("NextTime should report absence")
	}
	s.Next()
	if s.HasNext() {
		t.Error("HasNext on empty store")
	}
}

func TestMemoryStoreNextTimeDoesNotMove(t *testing.T) {
	s := NewMemoryFrameStore()
	_ = s.Dump(0, solidFrame(1, 1, 0), 1, 1)
	_ = s.Dump(40*time.Millisecond, solidFrame(1, 1, 0), 1, 1)

	nt, ok := s.NextTime()
	if !ok || nt != 40*time.Millisecond {
		t.Fatalf("NextTime = %v, %v", nt, ok)
	}
	ct, _ := s.CurrentTime()
	if ct != 0 {
		t.Errorf("NextTime moved the cursor to %v", ct)
	}

	s.Next()
	s.Next()
	ct, _ = s.CurrentTime()
	if ct != 40*time.Millisecond {
		t.Errorf("Next past the end should stay on last frame, got %v", ct)
	}
}

func TestMemoryStoreClear(t *testing.T) {
	s := NewMemoryFrameStore()
	_ = s.Dump(0, solidFrame(1, 1, 0), 1, 1)

	if err := s.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if !s.IsEmpty() || s.FrameCount() != 0 {
		t.Error("store should be empty after Clear")
	}
}

func TestMemoryStoreRejectsBadBuffer(t *testing.T) {
	s := NewMemoryFrameStore()
	if err := s.Dump(0, make([]float32, 3), 1, 1); err == nil {
		t.Error("expected error for short buffer")
	}
	if s.FrameCount() != 0 {
		t.Error("rejected frame was stored")
	}
}
