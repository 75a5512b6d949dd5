package hookrt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitSyncWith_PriorityOrderAndCancel(t *testing.T) {
	r := NewRegistry()
	var order []string

	r.RegisterImmutable(EventBufferOpen, 10, func(any) Action {
		order = append(order, "late")
		return Done(Continue)
	})
	r.RegisterImmutable(EventBufferOpen, 1, func(any) Action {
		order = append(order, "early")
		return Done(Continue)
	})
	r.RegisterImmutable(EventBufferOpen, 5, func(any) Action {
		order = append(order, "middle")
		return Done(Cancel)
	})

	q := NewQueue()
	result := r.EmitSyncWith(EventBufferOpen, nil, q)

	assert.Equal(t, Cancel, result)
	assert.Equal(t, []string{"early", "middle"}, order, "handler after the cancelling one must not run")
}

func TestEmitSyncWith_AsyncCannotCancel(t *testing.T) {
	r := NewRegistry()
	r.RegisterImmutable(EventBufferChange, 0, func(any) Action {
		return Async(func() Result { return Cancel })
	})
	r.RegisterImmutable(EventBufferChange, 1, func(any) Action {
		return Done(Continue)
	})

	q := NewQueue()
	result := r.EmitSyncWith(EventBufferChange, nil, q)

	assert.Equal(t, Continue, result, "an async handler's eventual Cancel cannot affect the already-committed emission")
	require.Equal(t, 1, q.Len())
}

func TestEmitMutableWith_OnlyRunsMutableHandlers(t *testing.T) {
	r := NewRegistry()
	var ran []string
	r.RegisterImmutable(EventEditorStart, 0, func(any) Action {
		ran = append(ran, "immutable")
		return Done(Continue)
	})
	r.RegisterMutable(EventEditorStart, 0, func(any) Action {
		ran = append(ran, "mutable")
		return Done(Continue)
	})

	q := NewQueue()
	r.EmitMutableWith(EventEditorStart, nil, q)
	assert.Equal(t, []string{"mutable"}, ran)
}

func TestQueue_DrainBudgetRespectsMaxCompletions(t *testing.T) {
	q := NewQueue()
	for i := 0; i < 5; i++ {
		q.Schedule(func() Result { return Continue })
	}
	report := q.DrainBudget(Budget{MaxCompletions: 3}, time.Now)
	assert.Equal(t, 3, report.Completed)
	assert.True(t, report.ExhaustedCount)
	assert.Equal(t, 2, q.Len())
}

func TestQueue_DrainBudgetRespectsDuration(t *testing.T) {
	q := NewQueue()
	q.Schedule(func() Result { return Continue })
	q.Schedule(func() Result { return Continue })

	calls := 0
	fakeNow := func() time.Time {
		calls++
		base := time.Unix(0, 0)
		if calls == 1 {
			return base
		}
		return base.Add(time.Hour)
	}
	report := q.DrainBudget(Budget{Duration: time.Millisecond, MaxCompletions: 100}, fakeNow)
	assert.Equal(t, 1, report.Completed)
	assert.True(t, report.ExhaustedTime)
}

func TestQueue_DrainBudgetEmptiesQueue(t *testing.T) {
	q := NewQueue()
	q.Schedule(func() Result { return Continue })
	report := q.DrainBudget(FastBudget, time.Now)
	assert.Equal(t, 1, report.Completed)
	assert.False(t, report.ExhaustedCount)
	assert.False(t, report.ExhaustedTime)
	assert.Equal(t, 0, q.Len())
}
