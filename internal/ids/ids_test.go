package ids

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNext_UniqueAndIncreasing(t *testing.T) {
	prev := Next()
	for i := 0; i < 1000; i++ {
		id := Next()
		require.Greater(t, id, prev)
		prev = id
	}
}

func TestNext_Concurrent(t *testing.T) {
	const workers, per = 8, 500
	var (
		mu   sync.Mutex
		seen = make(map[int64]struct{}, workers*per)
		wg   sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]int64, 0, per)
			for i := 0; i < per; i++ {
				local = append(local, Next())
			}
			mu.Lock()
			for _, id := range local {
				seen[id] = struct{}{}
			}
			mu.Unlock()
		}()
	}
	wg.Wait()
	require.Len(t, seen, workers*per)
}
