package retry_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"smartnotes/internal/ai/aierr"
	"smartnotes/internal/ai/retry"
)

func TestState_Lifecycle(t *testing.T) {
	st := retry.NewState()
	assert.Equal(t, retry.Snapshot{}, st.Snapshot())

	st.StartRetry()
	assert.True(t, st.Snapshot().IsRetrying)
	assert.InDelta(t, 33.33, st.Progress(), 0.01)

	st.SetError(&aierr.Error{Type: aierr.TypeAPI})
	st.StopRetry()
	snap := st.Snapshot()
	assert.False(t, snap.IsRetrying)
	assert.Equal(t, 1, snap.Attempts)
	assert.Equal(t, aierr.TypeAPI, snap.LastError.Type)
}

func TestState_ProgressCapped(t *testing.T) {
	st := retry.NewState()
	for i := 0; i < 7; i++ {
		st.StartRetry()
	}
	assert.Equal(t, float64(100), st.Progress())
}

func TestState_ResetFromAnyState(t *testing.T) {
	setups := map[string]func(*retry.State){
		"fresh":    func(*retry.State) {},
		"retrying": func(s *retry.State) { s.StartRetry() },
		"errored": func(s *retry.State) {
			s.StartRetry()
			s.StartRetry()
			s.SetError(&aierr.Error{Type: aierr.TypeNetwork})
		},
		"stopped": func(s *retry.State) {
			s.StartRetry()
			s.StopRetry()
		},
	}

	for name, setup := range setups {
		t.Run(name, func(t *testing.T) {
			st := retry.NewState()
			setup(st)
			st.Reset()
			snap := st.Snapshot()
			assert.Equal(t, 0, snap.Attempts)
			assert.False(t, snap.IsRetrying)
			assert.Nil(t, snap.LastError)
			assert.Zero(t, snap.Progress)
		})
	}
}

func TestState_ConcurrentAccess(t *testing.T) {
	st := retry.NewState()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			st.OnRetry(1, &aierr.Error{Type: aierr.TypeNetwork})
		}()
		go func() {
			defer wg.Done()
			_ = st.Snapshot()
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, st.Snapshot().Attempts)
}

func TestBoard(t *testing.T) {
	b := retry.NewBoard()
	_, ok := b.Get("n1")
	assert.False(t, ok)

	first := b.Begin("n1")
	first.StartRetry()
	got, ok := b.Get("n1")
	assert.True(t, ok)
	assert.Same(t, first, got)

	second := b.Begin("n1")
	assert.NotSame(t, first, second)
	assert.Equal(t, 0, second.Snapshot().Attempts)

	b.Forget("n1")
	_, ok = b.Get("n1")
	assert.False(t, ok)
}
