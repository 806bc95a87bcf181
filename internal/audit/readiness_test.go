package audit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReadinessState_Initial(t *testing.T) {
	t.Parallel()
	state := NewReadinessState(10 * time.Minute)

	assert.False(t, state.IsReady())
	assert.False(t, state.AuditCompleted())

	status := state.Status()
	assert.False(t, status.Ready)
	assert.Equal(t, "catalog audit in progress", status.Reason)
	assert.Equal(t, 600, status.TimeoutSeconds)
}

func TestReadinessState_MarkReady(t *testing.T) {
	t.Parallel()
	state := NewReadinessState(10 * time.Minute)

	state.MarkReady()

	assert.True(t, state.IsReady())
	assert.True(t, state.AuditCompleted())
	status := state.Status()
	assert.True(t, status.Ready)
	assert.Empty(t, status.Reason)
}

func TestReadinessState_Timeout(t *testing.T) {
	t.Parallel()
	state := NewReadinessState(50 * time.Millisecond)

	assert.False(t, state.IsReady())
	time.Sleep(60 * time.Millisecond)

	assert.True(t, state.IsReady())
	assert.False(t, state.AuditCompleted())
	assert.Equal(t, "timeout reached (audit may still be running)", state.Status().Reason)
}

func TestReadinessState_Concurrent(t *testing.T) {
	t.Parallel()
	state := NewReadinessState(time.Hour)

	var wg sync.WaitGroup
	for range 50 {
		wg.Go(func() { _ = state.Status() })
		wg.Go(state.MarkReady)
	}
	wg.Wait()

	assert.True(t, state.AuditCompleted())
}
