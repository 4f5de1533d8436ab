package recovery

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeResolver struct {
	mu       sync.Mutex
	attempts int
	okAfter  int
	inputs   []int
	output   int
}

func (f *fakeResolver) Resolve() ([]int, int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.attempts < f.okAfter {
		return nil, 0, false
	}
	return f.inputs, f.output, true
}

func TestTriggerIsSingleFlight(t *testing.T) {
	r := &fakeResolver{okAfter: 1000} // never resolves within the test window
	l := New(r, Callbacks{})
	l.Trigger()
	require.True(t, l.IsRecovering())
	l.Trigger() // second call must be a no-op
	l.Stop()
}

func TestRestartCallbackFiresOnResolution(t *testing.T) {
	r := &fakeResolver{okAfter: 1, inputs: []int{3}, output: 7}
	var gotInputs []int
	var gotOutput int
	done := make(chan struct{})
	l := New(r, Callbacks{Restart: func(in []int, out int) {
		gotInputs = in
		gotOutput = out
		close(done)
	}})

	l.Trigger()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("restart callback was never invoked")
	}

	require.Equal(t, []int{3}, gotInputs)
	require.Equal(t, 7, gotOutput)
	require.False(t, l.IsRecovering(), "recovering flag must clear once restarted")
}

func TestStopCancelsBeforeResolution(t *testing.T) {
	r := &fakeResolver{okAfter: 1000}
	l := New(r, Callbacks{})
	l.Trigger()
	l.Stop()
	require.False(t, l.IsRecovering())
}
