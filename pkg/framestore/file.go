package framestore

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/psantana5/lumirender/pkg/models"
	"github.com/spf13/afero"
)

const frameExt = ".png"

// FrameFileName returns the image name for an output frame index
func FrameFileName(index int) string {
	return fmt.Sprintf("%06d%s", index, frameExt)
}

// FileFrameStore writes frames as a numbered PNG sequence at a fixed frame
// rate. Output cadence is constant: when submissions skip output ticks the
// previously dumped frame is repeated to fill them.
type FileFrameStore struct {
	mu  sync.Mutex
	fs  afero.Fs
	dir string
	fps int

	prevIndex int // Last index written by Dump, -1 before the first write
	lastIndex int // Last index readable through the cursor
	highWater int // Highest index ever written, for Clear
	current   int

	lastData []byte // Encoded frame at prevIndex, nil until loaded or dumped

	// Single-frame decode cache
	cachedIndex  int
	cachedPixels []float32
	cachedWidth  int
	cachedHeight int
}

// NewFileFrameStore opens dir as an image sequence. An existing contiguous
// sequence starting at 000000.png becomes playable and is extended by
// further dumps.
func NewFileFrameStore(fs afero.Fs, dir string, fps int) (*FileFrameStore, error) {
	if fps <= 0 {
		fps = DefaultFPS
	}
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create frame directory %s: %w", dir, err)
	}

	s := &FileFrameStore{
		fs:          fs,
		dir:         dir,
		fps:         fps,
		prevIndex:   -1,
		lastIndex:   -1,
		highWater:   -1,
		cachedIndex: -1,
	}

	if err := s.scan(); err != nil {
		return nil, err
	}
	return s, nil
}

// scan picks up a sequence left by a previous run
func (s *FileFrameStore) scan() error {
	entries, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		return fmt.Errorf("failed to read frame directory %s: %w", s.dir, err)
	}

	present := make(map[int]bool, len(entries))
	high := -1
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, frameExt) {
			continue
		}
		idx, err := strconv.Atoi(strings.TrimSuffix(name, frameExt))
		if err != nil || idx < 0 {
			continue
		}
		present[idx] = true
		if idx > high {
			high = idx
		}
	}

	contiguous := -1
	for present[contiguous+1] {
		contiguous++
	}

	s.prevIndex = contiguous
	s.lastIndex = contiguous
	s.highWater = high
	return nil
}

// Dir returns the image directory
func (s *FileFrameStore) Dir() string {
	return s.dir
}

// FPS returns the output frame rate
func (s *FileFrameStore) FPS() int {
	return s.fps
}

// IndexForTime maps a time to its output frame index
func (s *FileFrameStore) IndexForTime(t time.Duration) int {
	return int(t.Milliseconds() * int64(s.fps) / 1000)
}

// TimeForIndex maps an output frame index to its time (whole milliseconds)
func (s *FileFrameStore) TimeForIndex(index int) time.Duration {
	return time.Duration(int64(index)*1000/int64(s.fps)) * time.Millisecond
}

func (s *FileFrameStore) framePath(index int) string {
	return path.Join(s.dir, FrameFileName(index))
}

// Dump writes the frame at the index t maps to. Skipped indices between the
// previous frame and this one repeat the previous frame; with no previous
// frame they repeat this one. A time that maps to an already written index
// writes nothing. On a write error the sequence ends at the last index
// written and the next dump resumes from there.
func (s *FileFrameStore) Dump(t time.Duration, pixels []float32, width, height int) error {
	if t < 0 {
		return fmt.Errorf("negative frame time %v", t)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	index := s.IndexForTime(t)
	if index <= s.prevIndex {
		return nil
	}

	var buf bytes.Buffer
	if err := EncodePNG(&buf, pixels, width, height); err != nil {
		return err
	}
	data := buf.Bytes()

	fill := s.previousFrameLocked()
	if fill == nil {
		fill = data
	}

	var err error
	written := s.prevIndex
	for i := s.prevIndex + 1; i <= index; i++ {
		payload := fill
		if i == index {
			payload = data
		}
		if i > s.highWater {
			s.highWater = i
		}
		if werr := afero.WriteFile(s.fs, s.framePath(i), payload, 0644); werr != nil {
			err = fmt.Errorf("failed to write frame %s: %w", s.framePath(i), werr)
			break
		}
		if i == s.cachedIndex {
			s.cachedIndex = -1
		}
		written = i
	}

	if written > s.prevIndex {
		s.prevIndex = written
		s.lastIndex = written
		if written == index {
			s.lastData = data
		} else {
			s.lastData = fill
		}
	}
	return err
}

// previousFrameLocked returns the encoded frame at prevIndex, reading it back
// from disk for a sequence picked up by scan. Callers hold s.mu.
func (s *FileFrameStore) previousFrameLocked() []byte {
	if s.lastData != nil || s.prevIndex < 0 {
		return s.lastData
	}
	data, err := afero.ReadFile(s.fs, s.framePath(s.prevIndex))
	if err != nil {
		return nil
	}
	s.lastData = data
	return data
}

// Reset moves the cursor to index 0
func (s *FileFrameStore) Reset() {
	s.mu.Lock()
	s.current = 0
	s.mu.Unlock()
}

// Next advances the cursor when the next file exists
func (s *FileFrameStore) Next() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hasNextLocked() {
		s.current++
	}
}

// HasNext reports whether the file for the next index exists
func (s *FileFrameStore) HasNext() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.hasNextLocked()
}

func (s *FileFrameStore) hasNextLocked() bool {
	next := s.current + 1
	if next > s.lastIndex {
		return false
	}
	ok, err := afero.Exists(s.fs, s.framePath(next))
	return err == nil && ok
}

// CurrentFrameBuffer decodes the frame under the cursor
func (s *FileFrameStore) CurrentFrameBuffer() ([]float32, bool) {
	rec, ok := s.CurrentFrame()
	if !ok {
		return nil, false
	}
	return rec.Pixels, true
}

// CurrentFrame decodes the frame under the cursor. Only the most recently
// loaded frame stays decoded.
func (s *FileFrameStore) CurrentFrame() (models.FrameRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current > s.lastIndex {
		return models.FrameRecord{}, false
	}

	if s.cachedIndex != s.current {
		f, err := s.fs.Open(s.framePath(s.current))
		if err != nil {
			return models.FrameRecord{}, false
		}
		pixels, width, height, err := DecodePNG(f)
		f.Close()
		if err != nil {
			return models.FrameRecord{}, false
		}
		s.cachedIndex = s.current
		s.cachedPixels = pixels
		s.cachedWidth = width
		s.cachedHeight = height
	}

	return models.FrameRecord{
		Time:   s.TimeForIndex(s.current),
		Pixels: copyPixels(s.cachedPixels),
		Width:  s.cachedWidth,
		Height: s.cachedHeight,
	}, true
}

// CurrentTime returns index*1000/fps for the cursor
func (s *FileFrameStore) CurrentTime() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current > s.lastIndex {
		return 0, false
	}
	return s.TimeForIndex(s.current), true
}

// NextTime returns the time of the following index without moving
func (s *FileFrameStore) NextTime() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasNextLocked() {
		return 0, false
	}
	return s.TimeForIndex(s.current + 1), true
}

// Clear deletes files 0 through the highest written index
func (s *FileFrameStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for i := 0; i <= s.highWater; i++ {
		if err := s.fs.Remove(s.framePath(i)); err != nil && !os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("failed to delete frame %s: %w", s.framePath(i), err))
		}
	}

	s.prevIndex = -1
	s.lastIndex = -1
	s.highWater = -1
	s.current = 0
	s.lastData = nil
	s.cachedIndex = -1
	s.cachedPixels = nil
	return errors.Join(errs...)
}

// IsEmpty reports whether frame 000000.png is readable
func (s *FileFrameStore) IsEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastIndex < 0 {
		return true
	}
	ok, err := afero.Exists(s.fs, s.framePath(0))
	return err != nil || !ok
}

// FrameCount returns the number of readable output frames
func (s *FileFrameStore) FrameCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lastIndex + 1
}

// Close drops the decode cache; files stay on disk
func (s *FileFrameStore) Close() error {
	s.mu.Lock()
	s.cachedIndex = -1
	s.cachedPixels = nil
	s.mu.Unlock()
	return nil
}
