package framestore

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/psantana5/lumirender/pkg/models"
)

// SQLiteFrameStore archives full-precision frames in a SQLite database so a
// rendered sequence survives restarts.
type SQLiteFrameStore struct {
	db      *sql.DB
	mu      sync.Mutex
	current int // Row offset in (time_ms, id) order
}

// NewSQLiteFrameStore opens or creates the frame database at dbPath
func NewSQLiteFrameStore(dbPath string) (*SQLiteFrameStore, error) {
	// WAL lets the API read while the worker writes
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=10000&_synchronous=NORMAL", dbPath)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer for SQLite to avoid lock contention
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	store := &SQLiteFrameStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteFrameStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS frames (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		time_ms INTEGER NOT NULL,
		width INTEGER NOT NULL,
		height INTEGER NOT NULL,
		pixels BLOB NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_frames_time ON frames(time_ms, id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// encodePixels packs float32 channels little-endian
func encodePixels(pixels []float32) []byte {
	out := make([]byte, len(pixels)*4)
	for i, v := range pixels {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}

func decodePixels(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("pixel blob length %d is not a multiple of 4", len(data))
	}
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out, nil
}

// Dump inserts the frame; rows with equal times keep insertion order
func (s *SQLiteFrameStore) Dump(t time.Duration, pixels []float32, width, height int) error {
	if err := models.ValidateBuffer(pixels, width, height); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO frames (time_ms, width, height, pixels)
		VALUES (?, ?, ?, ?)
	`, t.Milliseconds(), width, height, encodePixels(pixels))
	if err != nil {
		return fmt.Errorf("failed to insert frame at %dms: %w", t.Milliseconds(), err)
	}
	return nil
}

// Reset moves the cursor to the first row
func (s *SQLiteFrameStore) Reset() {
	s.mu.Lock()
	s.current = 0
	s.mu.Unlock()
}

// Next advances the cursor; no-op at the end
func (s *SQLiteFrameStore) Next() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current+1 < s.countLocked() {
		s.current++
	}
}

// HasNext reports whether a row follows the cursor
func (s *SQLiteFrameStore) HasNext() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.current+1 < s.countLocked()
}

func (s *SQLiteFrameStore) countLocked() int {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM frames`).Scan(&n); err != nil {
		return 0
	}
	return n
}

func (s *SQLiteFrameStore) timeAtLocked(offset int) (time.Duration, bool) {
	var ms int64
	err := s.db.QueryRow(`
		SELECT time_ms FROM frames ORDER BY time_ms, id LIMIT 1 OFFSET ?
	`, offset).Scan(&ms)
	if err != nil {
		return 0, false
	}
	return time.Duration(ms) * time.Millisecond, true
}

// CurrentFrameBuffer returns the pixels under the cursor
func (s *SQLiteFrameStore) CurrentFrameBuffer() ([]float32, bool) {
	rec, ok := s.CurrentFrame()
	if !ok {
		return nil, false
	}
	return rec.Pixels, true
}

// CurrentFrame loads the row under the cursor
func (s *SQLiteFrameStore) CurrentFrame() (models.FrameRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		ms            int64
		width, height int
		blob          []byte
	)
	err := s.db.QueryRow(`
		SELECT time_ms, width, height, pixels FROM frames
		ORDER BY time_ms, id LIMIT 1 OFFSET ?
	`, s.current).Scan(&ms, &width, &height, &blob)
	if err != nil {
		return models.FrameRecord{}, false
	}

	pixels, err := decodePixels(blob)
	if err != nil {
		return models.FrameRecord{}, false
	}

	return models.FrameRecord{
		Time:   time.Duration(ms) * time.Millisecond,
		Pixels: pixels,
		Width:  width,
		Height: height,
	}, true
}

// CurrentTime returns the time of the row under the cursor
func (s *SQLiteFrameStore) CurrentTime() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.timeAtLocked(s.current)
}

// NextTime returns the time of the following row without moving
func (s *SQLiteFrameStore) NextTime() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.timeAtLocked(s.current + 1)
}

// Clear deletes every row and resets the cursor
func (s *SQLiteFrameStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = 0
	if _, err := s.db.Exec(`DELETE FROM frames`); err != nil {
		return fmt.Errorf("failed to clear frames: %w", err)
	}
	return nil
}

// IsEmpty reports whether no row is stored
func (s *SQLiteFrameStore) IsEmpty() bool {
	return s.FrameCount() == 0
}

// FrameCount returns the number of stored rows
func (s *SQLiteFrameStore) FrameCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.countLocked()
}

// Close closes the database connection
func (s *SQLiteFrameStore) Close() error {
	return s.db.Close()
}
