package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimitClamps(t *testing.T) {
	assert.Equal(t, DefaultPageSize, Pagination{}.Limit())
	assert.Equal(t, MaxPageSize, Pagination{PageSize: 1000}.Limit())
	assert.Equal(t, 5, Pagination{PageSize: 5}.Limit())
}

func TestPageBuildsNextToken(t *testing.T) {
	rows := []int64{9, 8, 7}
	page, info := Page(rows, 2, func(v int64) int64 { return v })

	assert.Equal(t, []int64{9, 8}, page)
	require.True(t, info.HasMore)

	cursor, err := Pagination{PageToken: info.NextPageToken}.After()
	require.NoError(t, err)
	assert.Equal(t, int64(8), cursor.ID)
}

func TestPageWithoutMore(t *testing.T) {
	page, info := Page([]int64{1}, 2, func(v int64) int64 { return v })
	assert.Len(t, page, 1)
	assert.False(t, info.HasMore)
	assert.Empty(t, info.NextPageToken)
}

func TestAfterRejectsGarbage(t *testing.T) {
	_, err := Pagination{PageToken: "%%%"}.After()
	assert.ErrorIs(t, err, ErrInvalidPageToken)

	cursor, err := Pagination{}.After()
	assert.NoError(t, err)
	assert.Nil(t, cursor)
}
