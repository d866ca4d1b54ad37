package ledger

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minfy-dev/minfy/pkg/storage"
	"github.com/minfy-dev/minfy/pkg/storage/memory"
	"github.com/minfy-dev/minfy/pkg/types"
)

// deploy writes body as a new entry document and marks it live.
func deploy(t *testing.T, l *Ledger, b *memory.Backend, body string) string {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, b.PutObject(ctx, "site", EntryKey, strings.NewReader(body), "text/html"))
	id, err := l.MarkCurrent(ctx, "site")
	require.NoError(t, err)
	return id
}

func newSite(t *testing.T) (*Ledger, *memory.Backend) {
	t.Helper()
	b := memory.New("ap-south-1")
	require.NoError(t, b.CreateBucket(context.Background(), "site"))
	require.NoError(t, b.EnableVersioning(context.Background(), "site"))
	return New(b), b
}

func TestMarkCurrentAndCurrent(t *testing.T) {
	ctx := context.Background()
	l, b := newSite(t)

	id := deploy(t, l, b, "v1")
	got, err := l.Current(ctx, "site")
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestCurrentDistinguishesMissingBucketAndMarker(t *testing.T) {
	ctx := context.Background()
	l, b := newSite(t)

	_, err := l.Current(ctx, "nope")
	assert.True(t, errors.Is(err, types.ErrNoSuchBucket))
	assert.False(t, errors.Is(err, types.ErrNoMarker))

	require.NoError(t, b.PutObject(ctx, "site", EntryKey, strings.NewReader("x"), "text/html"))
	_, err = l.Current(ctx, "site")
	assert.True(t, errors.Is(err, types.ErrNoMarker))
	assert.False(t, errors.Is(err, types.ErrNoSuchBucket))
}

func TestMarkCurrentFailure(t *testing.T) {
	ctx := context.Background()
	l, b := newSite(t)

	_, err := l.MarkCurrent(ctx, "site")
	assert.True(t, errors.Is(err, types.ErrMarkerWrite), "no entry document yet")

	require.NoError(t, b.PutObject(ctx, "site", EntryKey, strings.NewReader("x"), "text/html"))
	b.Fail("PutObject", errors.New("denied"))
	_, err = l.MarkCurrent(ctx, "site")
	assert.True(t, errors.Is(err, types.ErrMarkerWrite))
}

func TestHistoryIsMonotonic(t *testing.T) {
	ctx := context.Background()
	l, b := newSite(t)

	var ids []string
	for _, body := range []string{"v1", "v2", "v3"} {
		ids = append(ids, deploy(t, l, b, body))
	}

	history, err := l.History(ctx, "site")
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, []string{ids[2], ids[1], ids[0]}, []string{history[0].ID, history[1].ID, history[2].ID})
	for i := 1; i < len(history); i++ {
		assert.True(t, history[i-1].ModifiedAt.After(history[i].ModifiedAt))
	}

	require.NoError(t, l.Revert(ctx, "site", history[1]))
	after, err := l.History(ctx, "site")
	require.NoError(t, err)
	assert.Len(t, after, 4, "revert appends a version and removes none")
}

func TestRollbackPrevious(t *testing.T) {
	ctx := context.Background()
	l, b := newSite(t)
	deploy(t, l, b, "v1")
	v2 := deploy(t, l, b, "v2")
	deploy(t, l, b, "v3")

	history, err := l.History(ctx, "site")
	require.NoError(t, err)

	target, err := SelectTarget(history, ModePrevious, nil)
	require.NoError(t, err)
	assert.Equal(t, v2, target.ID)

	require.NoError(t, l.Revert(ctx, "site", target))

	marker, err := l.Current(ctx, "site")
	require.NoError(t, err)
	assert.Equal(t, v2, marker)

	data, err := b.GetObject(ctx, "site", EntryKey)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))
}

func TestRollbackRefusedWithSingleVersion(t *testing.T) {
	ctx := context.Background()
	l, b := newSite(t)
	deploy(t, l, b, "v1")

	history, err := l.History(ctx, "site")
	require.NoError(t, err)

	before := len(b.Calls())
	_, err = SelectTarget(history, ModePrevious, nil)
	assert.True(t, errors.Is(err, types.ErrInsufficientHistory))
	assert.Len(t, b.Calls(), before, "no storage calls after refusal")
}

func TestOrdinal(t *testing.T) {
	history := []storage.Version{{ID: "c"}, {ID: "b"}, {ID: "a"}}

	assert.Equal(t, 3, Ordinal(history, "c"))
	assert.Equal(t, 1, Ordinal(history, "a"))
	assert.Equal(t, 0, Ordinal(history, "zzz"))
}

func TestSelectTarget(t *testing.T) {
	now := time.Now()
	history := make([]storage.Version, 7)
	for i := range history {
		history[i] = storage.Version{ID: string(rune('g' - i)), ModifiedAt: now.Add(-time.Duration(i) * time.Minute)}
	}

	t.Run("interactive offers the newest five", func(t *testing.T) {
		var offered []storage.Version
		got, err := SelectTarget(history, ModeInteractive, func(c []storage.Version) (int, error) {
			offered = c
			return 3, nil
		})
		require.NoError(t, err)
		assert.Len(t, offered, SelectionWindow)
		assert.Equal(t, history[3], got)
	})

	t.Run("interactive with two versions", func(t *testing.T) {
		got, err := SelectTarget(history[:2], ModeInteractive, func(c []storage.Version) (int, error) {
			assert.Len(t, c, 2)
			return 0, nil
		})
		require.NoError(t, err)
		assert.Equal(t, history[0], got)
	})

	t.Run("chooser error", func(t *testing.T) {
		_, err := SelectTarget(history, ModeInteractive, func([]storage.Version) (int, error) {
			return 0, errors.New("interrupted")
		})
		assert.ErrorContains(t, err, "interrupted")
	})

	t.Run("out of range choice", func(t *testing.T) {
		_, err := SelectTarget(history, ModeInteractive, func([]storage.Version) (int, error) { return 5, nil })
		assert.Error(t, err)
	})

	t.Run("missing chooser", func(t *testing.T) {
		_, err := SelectTarget(history, ModeInteractive, nil)
		assert.Error(t, err)
	})

	t.Run("empty history", func(t *testing.T) {
		_, err := SelectTarget(nil, ModeInteractive, nil)
		assert.True(t, errors.Is(err, types.ErrInsufficientHistory))
	})
}
