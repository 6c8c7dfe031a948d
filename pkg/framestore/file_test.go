package framestore

import (
	"errors"
	"os"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// byteExactFrame holds values that survive 8-bit quantization unchanged
func byteExactFrame(w, h, seed int) []float32 {
	p := make([]float32, w*h*4)
	for i := range p {
		p[i] = float32((seed+i*7)%256) / 255
	}
	return p
}

func newTestFileStore(t *testing.T) (*FileFrameStore, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	s, err := NewFileFrameStore(fs, "/frames", 24)
	require.NoError(t, err)
	return s, fs
}

func TestFileStoreRoundTrip(t *testing.T) {
	s, _ := newTestFileStore(t)

	frames := map[time.Duration][]float32{
		0:                      byteExactFrame(4, 3, 1),
		42 * time.Millisecond:  byteExactFrame(4, 3, 2),
		100 * time.Millisecond: byteExactFrame(4, 3, 3),
	}
	require.NoError(t, s.Dump(0, frames[0], 4, 3))
	require.NoError(t, s.Dump(42*time.Millisecond, frames[42*time.Millisecond], 4, 3))
	require.NoError(t, s.Dump(100*time.Millisecond, frames[100*time.Millisecond], 4, 3))

	// 100ms at 24fps is index 2; indices 0, 1, 2 exist
	assert.Equal(t, 3, s.FrameCount())

	s.Reset()
	rec, ok := s.CurrentFrame()
	require.True(t, ok)
	assert.Equal(t, time.Duration(0), rec.Time)
	assert.Equal(t, frames[0], rec.Pixels)
	assert.Equal(t, 4, rec.Width)
	assert.Equal(t, 3, rec.Height)

	require.True(t, s.HasNext())
	s.Next()
	rec, ok = s.CurrentFrame()
	require.True(t, ok)
	// 42ms is quantized to index 1, which reads back as 41ms
	assert.Equal(t, 41*time.Millisecond, rec.Time)
	assert.Equal(t, frames[42*time.Millisecond], rec.Pixels)

	s.Next()
	rec, ok = s.CurrentFrame()
	require.True(t, ok)
	assert.Equal(t, 83*time.Millisecond, rec.Time)
	assert.Equal(t, frames[100*time.Millisecond], rec.Pixels)
	assert.False(t, s.HasNext())
}

// frameAt reads the frame at index through the cursor
func frameAt(t *testing.T, s *FileFrameStore, index int) []float32 {
	t.Helper()
	s.Reset()
	for i := 0; i < index; i++ {
		require.True(t, s.HasNext(), "no frame after index %d", i)
		s.Next()
	}
	buf, ok := s.CurrentFrameBuffer()
	require.True(t, ok, "index %d unreadable", index)
	return buf
}

func TestFileStoreBackfillsSkippedIndices(t *testing.T) {
	s, fs := newTestFileStore(t)

	a := byteExactFrame(2, 2, 10)
	b := byteExactFrame(2, 2, 20)
	require.NoError(t, s.Dump(0, a, 2, 2))
	require.NoError(t, s.Dump(time.Second, b, 2, 2))

	for i := 0; i <= 24; i++ {
		ok, err := afero.Exists(fs, path.Join("/frames", FrameFileName(i)))
		require.NoError(t, err)
		assert.True(t, ok, "missing %s", FrameFileName(i))
	}
	ok, _ := afero.Exists(fs, path.Join("/frames", FrameFileName(25)))
	assert.False(t, ok)

	// Skipped ticks repeat the earlier frame; only index 24 holds the new one
	for i := 0; i <= 23; i++ {
		assert.Equal(t, a, frameAt(t, s, i), "index %d", i)
	}
	assert.Equal(t, b, frameAt(t, s, 24))
	assert.False(t, s.HasNext())
}

func TestFileStoreLeadingGapRepeatsFirstFrame(t *testing.T) {
	s, _ := newTestFileStore(t)

	a := byteExactFrame(1, 1, 3)
	// 100ms is index 2; nothing earlier exists to repeat
	require.NoError(t, s.Dump(100*time.Millisecond, a, 1, 1))
	assert.Equal(t, 3, s.FrameCount())
	for i := 0; i <= 2; i++ {
		assert.Equal(t, a, frameAt(t, s, i), "index %d", i)
	}
}

func TestFileStoreIgnoresAlreadyWrittenIndex(t *testing.T) {
	s, _ := newTestFileStore(t)

	a := byteExactFrame(2, 2, 1)
	require.NoError(t, s.Dump(0, a, 2, 2))
	// 30ms maps to index 0 as well
	require.NoError(t, s.Dump(30*time.Millisecond, byteExactFrame(2, 2, 99), 2, 2))

	assert.Equal(t, 1, s.FrameCount())
	buf, ok := s.CurrentFrameBuffer()
	require.True(t, ok)
	assert.Equal(t, a, buf)
}

func TestFileStoreClearDeletesFiles(t *testing.T) {
	s, fs := newTestFileStore(t)
	require.NoError(t, s.Dump(200*time.Millisecond, byteExactFrame(1, 1, 0), 1, 1))

	require.NoError(t, s.Clear())
	assert.True(t, s.IsEmpty())

	entries, err := afero.ReadDir(fs, "/frames")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFileStoreShorterSequenceAfterClear(t *testing.T) {
	s, fs := newTestFileStore(t)
	for ms := 0; ms <= 5000; ms += 500 {
		require.NoError(t, s.Dump(time.Duration(ms)*time.Millisecond, byteExactFrame(1, 1, 1), 1, 1))
	}
	require.Equal(t, 121, s.FrameCount())

	require.NoError(t, s.Clear())
	assert.True(t, s.IsEmpty())

	fresh := byteExactFrame(1, 1, 5)
	for ms := 0; ms <= 2000; ms += 500 {
		require.NoError(t, s.Dump(time.Duration(ms)*time.Millisecond, fresh, 1, 1))
	}
	assert.Equal(t, 49, s.FrameCount())
	require.NoError(t, s.Close())

	reopened, err := NewFileFrameStore(fs, "/frames", 24)
	require.NoError(t, err)
	assert.Equal(t, 49, reopened.FrameCount(), "frames of the longer sequence must not come back")
	assert.Equal(t, fresh, frameAt(t, reopened, 48))
}

// failingFs refuses to write one file
type failingFs struct {
	afero.Fs
	mu   sync.Mutex
	fail string
}

func (f *failingFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	f.mu.Lock()
	fail := f.fail
	f.mu.Unlock()
	if name == fail && flag&(os.O_WRONLY|os.O_RDWR) != 0 {
		return nil, errors.New("disk full")
	}
	return f.Fs.OpenFile(name, flag, perm)
}

func (f *failingFs) setFail(name string) {
	f.mu.Lock()
	f.fail = name
	f.mu.Unlock()
}

func TestFileStoreWriteFailureEndsSequence(t *testing.T) {
	fs := &failingFs{Fs: afero.NewMemMapFs()}
	s, err := NewFileFrameStore(fs, "/frames", 24)
	require.NoError(t, err)

	a := byteExactFrame(1, 1, 1)
	b := byteExactFrame(1, 1, 2)
	require.NoError(t, s.Dump(0, a, 1, 1))

	fs.setFail(path.Join("/frames", FrameFileName(3)))
	// 209ms is index 5
	require.Error(t, s.Dump(209*time.Millisecond, b, 1, 1))

	assert.Equal(t, 3, s.FrameCount(), "only indices written before the failure count")
	frameAt(t, s, 2)
	assert.False(t, s.HasNext())

	fs.setFail("")
	require.NoError(t, s.Dump(209*time.Millisecond, b, 1, 1))
	assert.Equal(t, 6, s.FrameCount())
	assert.Equal(t, a, frameAt(t, s, 3))
	assert.Equal(t, a, frameAt(t, s, 4))
	assert.Equal(t, b, frameAt(t, s, 5))
}

func TestFileStoreReopensExistingSequence(t *testing.T) {
	s, fs := newTestFileStore(t)
	require.NoError(t, s.Dump(100*time.Millisecond, byteExactFrame(1, 1, 0), 1, 1))
	require.NoError(t, s.Close())

	reopened, err := NewFileFrameStore(fs, "/frames", 24)
	require.NoError(t, err)
	assert.Equal(t, 3, reopened.FrameCount())
	assert.False(t, reopened.IsEmpty())

	// New dumps continue after the existing sequence
	require.NoError(t, reopened.Dump(100*time.Millisecond, byteExactFrame(1, 1, 1), 1, 1))
	assert.Equal(t, 3, reopened.FrameCount())

	// Backfill repeats the last frame found on disk
	later := byteExactFrame(1, 1, 2)
	require.NoError(t, reopened.Dump(209*time.Millisecond, later, 1, 1))
	assert.Equal(t, 6, reopened.FrameCount())
	assert.Equal(t, byteExactFrame(1, 1, 0), frameAt(t, reopened, 4))
	assert.Equal(t, later, frameAt(t, reopened, 5))
}

func TestFileStoreDefaultsFPS(t *testing.T) {
	s, err := NewFileFrameStore(afero.NewMemMapFs(), "/out", 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultFPS, s.FPS())
	assert.Equal(t, 24, s.IndexForTime(time.Second))
	assert.Equal(t, time.Second, s.TimeForIndex(24))
}

func TestFileStoreRejectsNegativeTime(t *testing.T) {
	s, _ := newTestFileStore(t)
	assert.Error(t, s.Dump(-time.Millisecond, byteExactFrame(1, 1, 0), 1, 1))
}
