package framestore

import (
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestMemoryStoreReadersAlongsideWriter(t *testing.T) {
	const frames = 200
	s := NewMemoryFrameStore()
	done := make(chan struct{})

	var errg errgroup.Group
	errg.Go(func() error {
		defer close(done)
		for i := frames - 1; i >= 0; i-- {
			if err := s.Dump(time.Duration(i)*time.Millisecond, solidFrame(2, 2, 0.5), 2, 2); err != nil {
				return err
			}
		}
		return nil
	})
	for r := 0; r < 4; r++ {
		errg.Go(func() error {
			for {
				select {
				case <-done:
					return nil
				default:
				}
				times := s.Times()
				if !sort.SliceIsSorted(times, func(i, j int) bool { return times[i] < times[j] }) {
					return fmt.Errorf("times out of order: %v", times)
				}
				if n := s.FrameCount(); n > 0 {
					if rec, ok := s.Frame(n - 1); ok && len(rec.Pixels) != 16 {
						return fmt.Errorf("frame %d has %d samples", n-1, len(rec.Pixels))
					}
				}
			}
		})
	}

	require.NoError(t, errg.Wait())
	assert.Equal(t, frames, s.FrameCount())
}
