package jobs

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func putJob(ticker string, strike float64, days int, spot float64) Job {
	return NewJob(JobRequest{Ticker: ticker, OptionType: "american_put", Strike: strike, Days: days, Spot: spot, Rate: 0.03, Sigma: 0.3})
}

func Test_Queue_DuplicateKeepsFirst(t *testing.T) {
	q := NewQueue()

	require.Equal(t, Accepted, q.Submit(putJob("AAPL", 10, 20, 10)))
	require.Equal(t, DuplicateDropped, q.Submit(putJob("AAPL", 10, 20, 12)))
	require.Equal(t, 1, q.Len())

	batch := q.Drain()
	require.Len(t, batch, 1)
	require.Equal(t, 10.0, batch[0].Spot)
}

func Test_Queue_DrainIsFIFOAndResetsSeen(t *testing.T) {
	q := NewQueue()
	for i := 0; i < 5; i++ {
		q.Submit(putJob(fmt.Sprintf("T%d", i), 10, 20, 10))
	}

	batch := q.Drain()
	require.Len(t, batch, 5)
	for i, job := range batch {
		require.Equal(t, fmt.Sprintf("T%d", i), job.Ticker)
	}
	require.Zero(t, q.Len())
	require.Empty(t, q.Drain())

	// drained keys may be submitted again
	require.Equal(t, Accepted, q.Submit(putJob("T0", 10, 20, 11)))
}

func Test_Queue_Remove(t *testing.T) {
	q := NewQueue()
	job := putJob("GOOG", 15, 30, 14)
	q.Submit(job)
	q.Submit(putJob("MSFT", 15, 30, 14))

	require.True(t, q.Remove(job.Key()))
	require.False(t, q.Remove(job.Key()))
	require.Equal(t, 1, q.Len())

	require.Equal(t, Accepted, q.Submit(putJob("GOOG", 15, 30, 16)))
	batch := q.Drain()
	require.Len(t, batch, 2)
	require.Equal(t, "MSFT", batch[0].Ticker)
	require.Equal(t, 16.0, batch[1].Spot)
}

func Test_Queue_ConcurrentSubmitNoDuplicates(t *testing.T) {
	q := NewQueue()

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				if q.Submit(putJob("SPY", float64(i+1), 10, float64(g+1))) == Accepted {
					mu.Lock()
					accepted++
					mu.Unlock()
				}
			}
		}(g)
	}
	wg.Wait()

	require.Equal(t, 50, accepted)
	batch := q.Drain()
	require.Len(t, batch, 50)

	seen := make(map[JobKey]bool)
	for _, job := range batch {
		require.False(t, seen[job.Key()])
		seen[job.Key()] = true
	}
}

func Test_SubmitOutcome_String(t *testing.T) {
	require.Equal(t, "accepted", Accepted.String())
	require.Equal(t, "duplicate-dropped", DuplicateDropped.String())
}
