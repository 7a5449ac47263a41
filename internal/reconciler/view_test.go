package reconciler

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/postboard/internal/model"
)

// withRecords returns an initialized Reconciler holding n unauthored posts
// with ids 1..n.
func withRecords(t *testing.T, n int) *Reconciler {
	t.Helper()
	posts := &fakePosts{posts: []model.Post{}}
	for i := 1; i <= n; i++ {
		posts.posts = append(posts.posts, model.Post{ID: int32(i)})
	}
	r := New(&fakeUsers{}, posts, &fakeFeed{})
	require.NoError(t, r.Initialize(context.Background()))
	return r
}

func ids(records []model.JoinedRecord) []int32 {
	out := make([]int32, len(records))
	for i, rec := range records {
		out[i] = rec.ID
	}
	return out
}

func TestGetPage(t *testing.T) {
	r := withRecords(t, 3)

	tests := []struct {
		name      string
		pageIndex int
		pageSize  int
		want      []int32
	}{
		{"first page", 0, 2, []int32{1, 2}},
		{"partial last page", 1, 2, []int32{3}},
		{"past the end", 2, 2, []int32{}},
		{"far past the end", 1 << 40, 1 << 40, []int32{}},
		{"whole sequence", 0, 10, []int32{1, 2, 3}},
		{"negative index", -1, 2, []int32{}},
		{"zero size", 0, 0, []int32{}},
		{"max size", 0, math.MaxInt, []int32{1, 2, 3}},
		{"max size minus one", 0, math.MaxInt - 1, []int32{1, 2, 3}},
		{"second page of max size", 1, math.MaxInt, []int32{}},
		{"max index", math.MaxInt, 1, []int32{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.GetPage(tt.pageIndex, tt.pageSize)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestPageCount(t *testing.T) {
	tests := []struct {
		total, pageSize, want int
	}{
		{0, 5, 0},
		{5, 5, 1},
		{6, 5, 2},
		{3, math.MaxInt, 1},
		{math.MaxInt, math.MaxInt - 1, 2},
		{3, 0, 0},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d/%d", tt.total, tt.pageSize), func(t *testing.T) {
			assert.Equal(t, tt.want, pageCount(tt.total, tt.pageSize))
		})
	}
}

func TestGetPageIsIdempotent(t *testing.T) {
	r := withRecords(t, 7)

	first := r.GetPage(1, 3)
	first[0].Title = "mutated by caller"
	second := r.GetPage(1, 3)

	assert.Equal(t, []int32{4, 5, 6}, ids(second))
	assert.Empty(t, second[0].Title)
	assert.Equal(t, 7, r.TotalCount())
}

func TestPagesPartitionTheSequence(t *testing.T) {
	for total := 0; total <= 12; total++ {
		r := withRecords(t, total)
		all := ids(r.GetPage(0, total+1))

		for size := 1; size <= 5; size++ {
			var joined []int32
			pages := (total + size - 1) / size
			for p := 0; p < pages; p++ {
				page := r.GetPage(p, size)
				if p < pages-1 {
					assert.Len(t, page, size)
				} else {
					assert.Len(t, page, total-p*size)
				}
				joined = append(joined, ids(page)...)
			}
			assert.Empty(t, r.GetPage(pages, size))
			assert.Equal(t, len(all), len(joined))
			if total > 0 {
				assert.Equal(t, all, joined)
			}
		}
	}
}

func TestToggleExpand(t *testing.T) {
	r := withRecords(t, 3)
	r.SetPage(1)

	_, ok := r.Expanded()
	assert.False(t, ok)

	r.ToggleExpand(1)
	assert.True(t, r.IsExpanded(1))

	r.ToggleExpand(2)
	assert.True(t, r.IsExpanded(2))
	assert.False(t, r.IsExpanded(1))

	r.ToggleExpand(2)
	_, ok = r.Expanded()
	assert.False(t, ok)

	t.Run("ids outside the sequence are accepted", func(t *testing.T) {
		r.ToggleExpand(99)
		id, ok := r.Expanded()
		assert.True(t, ok)
		assert.Equal(t, int32(99), id)
	})

	assert.Equal(t, 3, r.TotalCount())
	assert.Equal(t, 1, r.Page())
	assert.Equal(t, DefaultPageSize, r.PageSize())
}

func TestPaginationState(t *testing.T) {
	r := withRecords(t, 12)

	assert.Equal(t, 0, r.Page())
	assert.Equal(t, 5, r.PageSize())
	assert.Equal(t, 3, r.PageCount())
	assert.Equal(t, []int32{1, 2, 3, 4, 5}, ids(r.CurrentPage()))

	r.SetPage(2)
	assert.Equal(t, []int32{11, 12}, ids(r.CurrentPage()))

	t.Run("page size change returns to the first page", func(t *testing.T) {
		require.NoError(t, r.SetPageSize(10))
		assert.Equal(t, 0, r.Page())
		assert.Equal(t, 2, r.PageCount())
	})

	t.Run("invalid page size", func(t *testing.T) {
		assert.Error(t, r.SetPageSize(0))
		assert.Equal(t, 10, r.PageSize())
	})

	t.Run("negative page", func(t *testing.T) {
		r.SetPage(-3)
		assert.Equal(t, 0, r.Page())
	})

	t.Run("page beyond the end is empty", func(t *testing.T) {
		r.SetPage(9)
		assert.Empty(t, r.CurrentPage())
	})
}

func TestView(t *testing.T) {
	r := withRecords(t, 7)
	r.SetPage(1)
	r.ToggleExpand(6)

	v := r.View()

	assert.Equal(t, []int32{6, 7}, ids(v.Records))
	assert.Equal(t, 1, v.Page)
	assert.Equal(t, 5, v.PageSize)
	assert.Equal(t, 7, v.Total)
	assert.Equal(t, 2, v.PageCount())
	assert.Equal(t, 5, v.FirstIndex())
	require.NotNil(t, v.Expanded)
	assert.Equal(t, int32(6), *v.Expanded)

	r.ToggleExpand(6)
	assert.Equal(t, int32(6), *v.Expanded, "snapshot is detached")
}
