// ABOUTME: Tests for the session manager.
// ABOUTME: Covers lazy creation, idempotence, sweep boundaries, pinning, history trimming and write races.

package session

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestManager(clock *fakeClock, opts ...Option) *Manager {
	return NewManager(append([]Option{WithClock(clock.Now)}, opts...)...)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "facebook:123", Key("facebook", "123"))
	assert.NotEqual(t, Key("facebook", "123"), Key("zalo", "123"))
}

func TestManager_GetOrCreate_NewSession(t *testing.T) {
	clock := newFakeClock()
	m := newTestManager(clock)

	s := m.GetOrCreate("facebook:u1")

	assert.NotEmpty(t, s.ID)
	assert.Equal(t, "facebook:u1", s.Key)
	assert.Equal(t, StepInit, s.Step)
	assert.Empty(t, s.CurrentCategory)
	assert.Empty(t, s.History)
	assert.NotNil(t, s.Data)
	assert.Equal(t, clock.Now(), s.CreatedAt)
	assert.Equal(t, clock.Now(), s.LastActiveAt)
}

func TestManager_GetOrCreate_Idempotent(t *testing.T) {
	m := newTestManager(newFakeClock())

	first := m.GetOrCreate("telegram:42")
	second := m.GetOrCreate("telegram:42")

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, m.Stats().Total)
}

func TestManager_GetOrCreate_RefreshesLastActive(t *testing.T) {
	clock := newFakeClock()
	m := newTestManager(clock)

	first := m.GetOrCreate("zalo:7")
	clock.Advance(time.Minute)
	second := m.GetOrCreate("zalo:7")

	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.Equal(t, first.LastActiveAt.Add(time.Minute), second.LastActiveAt)
}

func TestManager_Sweep_Boundary(t *testing.T) {
	clock := newFakeClock()
	m := newTestManager(clock, WithTimeout(30*time.Minute))

	created := clock.Now()
	m.GetOrCreate("weibo:touched")
	m.GetOrCreate("weibo:idle")

	// Touch one session a second before the timeout.
	clock.Advance(30*time.Minute - time.Second)
	m.GetOrCreate("weibo:touched")

	// Exactly at the timeout instant: idle session has now-last == timeout, not greater.
	removed := m.Sweep(created.Add(30 * time.Minute))
	assert.Equal(t, 0, removed)

	removed = m.Sweep(created.Add(30*time.Minute + time.Nanosecond))
	assert.Equal(t, 1, removed)

	_, ok := m.Get("weibo:idle")
	assert.False(t, ok)
	_, ok = m.Get("weibo:touched")
	assert.True(t, ok, "session touched one second before the timeout must survive")
}

func TestManager_Sweep_SkipsPinned(t *testing.T) {
	clock := newFakeClock()
	m := newTestManager(clock, WithTimeout(time.Minute))

	_, release := m.Begin("tiktok:busy")
	m.GetOrCreate("tiktok:idle")

	later := clock.Now().Add(time.Hour)
	assert.Equal(t, 1, m.Sweep(later))
	_, ok := m.Get("tiktok:busy")
	require.True(t, ok, "pinned session must not be swept")
	assert.Equal(t, 1, m.Stats().InFlight)

	release()
	release() // idempotent
	assert.Equal(t, 0, m.Stats().InFlight)
	assert.Equal(t, 1, m.Sweep(later))
}

func TestManager_Save_PreservesPin(t *testing.T) {
	clock := newFakeClock()
	m := newTestManager(clock, WithTimeout(time.Minute))

	s, release := m.Begin("matrix:@a:b")
	defer release()

	s.Step = StepCategory
	m.Save(s)

	assert.Equal(t, 0, m.Sweep(clock.Now().Add(time.Hour)))
	got, ok := m.Get("matrix:@a:b")
	require.True(t, ok)
	assert.Equal(t, StepCategory, got.Step)
}

func TestManager_Save_TrimsHistoryFIFO(t *testing.T) {
	m := newTestManager(newFakeClock(), WithHistoryLimit(3))

	s := m.GetOrCreate("facebook:hist")
	for i := 0; i < 5; i++ {
		s.AddTurn(Turn{Input: fmt.Sprintf("msg-%d", i)}, 0)
	}
	m.Save(s)

	got, ok := m.Get("facebook:hist")
	require.True(t, ok)
	require.Len(t, got.History, 3)
	assert.Equal(t, "msg-2", got.History[0].Input)
	assert.Equal(t, "msg-4", got.History[2].Input)
}

func TestSession_AddTurn_Limit(t *testing.T) {
	s := newSession("k", time.Now())
	for i := 0; i < 4; i++ {
		s.AddTurn(Turn{Input: fmt.Sprint(i)}, 2)
	}
	require.Len(t, s.History, 2)
	assert.Equal(t, "2", s.History[0].Input)
	assert.Equal(t, "3", s.History[1].Input)
}

func TestManager_End(t *testing.T) {
	m := newTestManager(newFakeClock())

	first := m.GetOrCreate("facebook:reset")
	assert.True(t, m.End("facebook:reset"))
	assert.False(t, m.End("facebook:reset"))

	second := m.GetOrCreate("facebook:reset")
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, StepInit, second.Step)
}

func TestManager_CopiesDoNotAlias(t *testing.T) {
	m := newTestManager(newFakeClock())

	s := m.GetOrCreate("facebook:alias")
	s.Data["nested"] = map[string]any{"count": 1}
	s.AddTurn(Turn{Input: "hi"}, 0)
	m.Save(s)

	// Mutating the caller's copy after Save must not reach the store.
	s.Data["nested"].(map[string]any)["count"] = 99
	s.History[0].Input = "changed"

	got, ok := m.Get("facebook:alias")
	require.True(t, ok)
	assert.Equal(t, 1, got.Data["nested"].(map[string]any)["count"])
	assert.Equal(t, "hi", got.History[0].Input)

	// Mutating a read copy must not reach the store either.
	got.Data["nested"].(map[string]any)["count"] = 5
	again, _ := m.Get("facebook:alias")
	assert.Equal(t, 1, again.Data["nested"].(map[string]any)["count"])
}

func TestSnapshot_DeepCopy(t *testing.T) {
	orig := &Session{
		ID:      "id",
		History: []Turn{{Input: "a"}},
		Data: map[string]any{
			"list":   []any{map[string]any{"x": 1}},
			"tags":   []string{"a", "b"},
			"labels": map[string]string{"k": "v"},
		},
	}

	snap := Snapshot(orig)
	snap.History[0].Input = "b"
	snap.Data["list"].([]any)[0].(map[string]any)["x"] = 2
	snap.Data["tags"].([]string)[0] = "z"
	snap.Data["labels"].(map[string]string)["k"] = "w"

	assert.Equal(t, "a", orig.History[0].Input)
	assert.Equal(t, 1, orig.Data["list"].([]any)[0].(map[string]any)["x"])
	assert.Equal(t, "a", orig.Data["tags"].([]string)[0])
	assert.Equal(t, "v", orig.Data["labels"].(map[string]string)["k"])
}

func TestSnapshot_Nil(t *testing.T) {
	assert.Equal(t, Session{}, Snapshot(nil))
}

// Two overlapping turns for one user are not serialized: whichever Save
// lands last wins and the other update is lost.
func TestManager_ConcurrentTurns_LastWriteWins(t *testing.T) {
	m := newTestManager(newFakeClock())

	a := m.GetOrCreate("facebook:race")
	b := m.GetOrCreate("facebook:race")

	a.Data["from"] = "a"
	a.Data["only_a"] = true
	b.Data["from"] = "b"

	m.Save(a)
	m.Save(b)

	got, _ := m.Get("facebook:race")
	assert.Equal(t, "b", got.Data["from"])
	_, hasA := got.Data["only_a"]
	assert.False(t, hasA, "the earlier write is lost")
}

func TestManager_ConcurrentAccessWithSweep(t *testing.T) {
	clock := newFakeClock()
	m := newTestManager(clock, WithTimeout(time.Millisecond))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			key := Key("facebook", fmt.Sprint(id%4))
			for j := 0; j < 100; j++ {
				s, release := m.Begin(key)
				s.AddTurn(Turn{Input: fmt.Sprint(j)}, 0)
				m.Save(s)
				release()
			}
		}(i)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 100; j++ {
			m.Sweep(clock.Now().Add(time.Hour))
			m.Stats()
		}
	}()
	wg.Wait()

	for _, s := range m.List() {
		assert.LessOrEqual(t, len(s.History), DefaultHistoryLimit)
	}
}

func TestManager_StatsAndList(t *testing.T) {
	clock := newFakeClock()
	m := newTestManager(clock, WithTimeout(time.Minute))

	m.GetOrCreate("a:1")
	clock.Advance(2 * time.Minute)
	m.GetOrCreate("a:2")

	st := m.Stats()
	assert.Equal(t, 2, st.Total)
	assert.Equal(t, 1, st.Active)

	list := m.List()
	require.Len(t, list, 2)
	assert.Equal(t, "a:2", list[0].Key)
}

func TestMemoryStore_Stripes(t *testing.T) {
	s := NewMemoryStore()
	now := time.Now()
	for i := 0; i < 200; i++ {
		key := fmt.Sprintf("p:%d", i)
		s.Acquire(key, now, false, func() *Session { return newSession(key, now) })
	}
	assert.Equal(t, 200, s.Len())

	count := 0
	s.Range(func(Session, bool) bool {
		count++
		return count < 10
	})
	assert.Equal(t, 10, count)
}
