package cache

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(kind Kind, id string) Key {
	return Key{Server: "http://a", Project: "/work", Kind: kind, ID: id}
}

func TestFetchServesFreshValueWithoutRefetch(t *testing.T) {
	s := NewStore(nil)
	key := testKey(KindSessions, "")

	var calls int32
	fn := func(ctx context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		return "v1", nil
	}

	v, err := s.Fetch(context.Background(), key, fn)
	require.NoError(t, err)
	assert.Equal(t, "v1", v)

	v, err = s.Fetch(context.Background(), key, fn)
	require.NoError(t, err)
	assert.Equal(t, "v1", v)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFetchStaleServesOldValueAndRevalidates(t *testing.T) {
	s := NewStore(nil)
	key := testKey(KindStatus, "")

	now := time.Now()
	s.now = func() time.Time { return now }

	var calls int32
	fn := func(ctx context.Context) (any, error) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			return "old", nil
		}
		return "new", nil
	}

	v, err := s.Fetch(context.Background(), key, fn)
	require.NoError(t, err)
	assert.Equal(t, "old", v)

	// Cross the staleness window; the stale value is returned immediately.
	now = now.Add(s.window(KindStatus) + time.Second)
	v, err = s.Fetch(context.Background(), key, fn)
	require.NoError(t, err)
	assert.Equal(t, "old", v)

	require.Eventually(t, func() bool {
		v, ok := s.Peek(key)
		return ok && v == "new"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestFetchErrorIsReturnedAndRetriedNextTime(t *testing.T) {
	s := NewStore(nil)
	key := testKey(KindSessions, "")

	var calls int32
	fn := func(ctx context.Context) (any, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return nil, assert.AnError
		}
		return "ok", nil
	}

	_, err := s.Fetch(context.Background(), key, fn)
	require.Error(t, err)

	v, err := s.Fetch(context.Background(), key, fn)
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestPatchSkipsMissingEntries(t *testing.T) {
	s := NewStore(nil)
	key := testKey(KindMessages, "ses_a")

	changed := s.Patch(key, func(old any) any { return "patched" })
	assert.False(t, changed)

	_, ok := s.Peek(key)
	assert.False(t, ok)
}

func TestPatchUpdatesExistingEntry(t *testing.T) {
	s := NewStore(nil)
	key := testKey(KindMessages, "ses_a")

	_, err := s.Fetch(context.Background(), key, func(ctx context.Context) (any, error) {
		return 1, nil
	})
	require.NoError(t, err)

	changed := s.Patch(key, func(old any) any { return old.(int) + 1 })
	assert.True(t, changed)

	v, ok := s.Peek(key)
	require.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestUpsertCreatesMissingEntry(t *testing.T) {
	s := NewStore(nil)
	key := testKey(KindTodos, "ses_a")

	s.Upsert(key, func(old any) any {
		assert.Nil(t, old)
		return "created"
	})

	v, ok := s.Peek(key)
	require.True(t, ok)
	assert.Equal(t, "created", v)
}

func TestInvalidateKindsLeavesOtherScopesAlone(t *testing.T) {
	s := NewStore(nil)

	a := Key{Server: "http://a", Project: "/work", Kind: KindSessions}
	aProviders := Key{Server: "http://a", Project: "/work", Kind: KindProviders}
	b := Key{Server: "http://b", Project: "/work", Kind: KindSessions}

	for _, key := range []Key{a, aProviders, b} {
		s.Upsert(key, func(any) any { return "x" })
	}

	s.InvalidateKinds("http://a", "/work", KindSessions)

	_, ok := s.Peek(a)
	assert.False(t, ok)
	_, ok = s.Peek(aProviders)
	assert.True(t, ok)
	_, ok = s.Peek(b)
	assert.True(t, ok)
}

func TestRevalidationResultDroppedAfterInvalidate(t *testing.T) {
	s := NewStore(nil)
	key := testKey(KindSessions, "")

	now := time.Now()
	s.now = func() time.Time { return now }

	release := make(chan struct{})
	var calls int32
	fn := func(ctx context.Context) (any, error) {
		if atomic.AddInt32(&calls, 1) > 1 {
			<-release
			return "late", nil
		}
		return "first", nil
	}

	_, err := s.Fetch(context.Background(), key, fn)
	require.NoError(t, err)

	now = now.Add(s.window(KindSessions) + time.Second)
	_, err = s.Fetch(context.Background(), key, fn)
	require.NoError(t, err)

	s.Invalidate(key)
	close(release)

	// The late result must not resurrect the invalidated entry.
	assert.Never(t, func() bool {
		_, ok := s.Peek(key)
		return ok
	}, 200*time.Millisecond, 20*time.Millisecond)
}

func TestSetWindowOverridesDefault(t *testing.T) {
	s := NewStore(nil)
	s.SetWindow(KindSessions, time.Hour)
	assert.Equal(t, time.Hour, s.window(KindSessions))
}
