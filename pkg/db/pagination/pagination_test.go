package pagination

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 123, time.UTC)
	token, err := EncodeCursor(Cursor{ID: "99", CreatedAt: now.Format(time.RFC3339Nano)})
	require.NoError(t, err)

	cursor, err := DecodeCursor(token)
	require.NoError(t, err)
	assert.Equal(t, "99", cursor.ID)
	got, err := cursor.CursorTime()
	require.NoError(t, err)
	assert.True(t, now.Equal(got))
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"***", "bm90LWpzb24", "e30"} {
		_, err := DecodeCursor(raw)
		assert.ErrorIs(t, err, ErrInvalidPageToken, raw)
	}
}

func TestLimit(t *testing.T) {
	assert.Equal(t, DefaultPageSize, Pagination{}.Limit())
	assert.Equal(t, 10, Pagination{PageSize: 10}.Limit())
	assert.Equal(t, MaxPageSize, Pagination{PageSize: 1000}.Limit())
}

func TestPage(t *testing.T) {
	rows := []int{1, 2, 3}
	extract := func(v int) Cursor {
		return Cursor{ID: strconv.Itoa(v), CreatedAt: time.Unix(int64(v), 0).UTC().Format(time.RFC3339Nano)}
	}

	items, info, err := Page(rows, 2, extract)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, items)
	assert.True(t, info.HasMore)

	cursor, err := DecodeCursor(info.NextPageToken)
	require.NoError(t, err)
	assert.Equal(t, "2", cursor.ID)

	items, info, err = Page(rows, 3, extract)
	require.NoError(t, err)
	assert.Len(t, items, 3)
	assert.False(t, info.HasMore)
	assert.Empty(t, info.NextPageToken)
}
