package reconciler

import (
	"fmt"

	"github.com/dyluth/postboard/internal/model"
)

// View is a snapshot of what a table shows.
type View struct {
	Records  []model.JoinedRecord
	Page     int
	PageSize int
	Total    int
	Expanded *int32
}

// PageCount returns the number of pages in the snapshot.
func (v View) PageCount() int {
	return pageCount(v.Total, v.PageSize)
}

// FirstIndex returns the zero-based sequence index of the first shown record.
func (v View) FirstIndex() int {
	return v.Page * v.PageSize
}

// GetPage returns up to pageSize records starting at pageIndex*pageSize.
// Out-of-range requests yield an empty slice.
func (r *Reconciler) GetPage(pageIndex, pageSize int) []model.JoinedRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slicePage(r.records, pageIndex, pageSize)
}

// TotalCount returns the length of the sequence.
func (r *Reconciler) TotalCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// ToggleExpand expands recordID, or clears the expansion if recordID is
// already expanded.
func (r *Reconciler) ToggleExpand(recordID int32) {
	r.mu.Lock()
	if r.expanded != nil && *r.expanded == recordID {
		r.expanded = nil
	} else {
		id := recordID
		r.expanded = &id
	}
	notify := r.onChange
	r.mu.Unlock()

	if notify != nil {
		notify()
	}
}

// Expanded returns the expanded record id, if any.
func (r *Reconciler) Expanded() (int32, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.expanded == nil {
		return 0, false
	}
	return *r.expanded, true
}

// IsExpanded reports whether recordID is the expanded record.
func (r *Reconciler) IsExpanded(recordID int32) bool {
	id, ok := r.Expanded()
	return ok && id == recordID
}

// SetPage selects the current page. Negative values select the first page.
func (r *Reconciler) SetPage(page int) {
	if page < 0 {
		page = 0
	}
	r.mu.Lock()
	r.page = page
	notify := r.onChange
	r.mu.Unlock()

	if notify != nil {
		notify()
	}
}

// SetPageSize changes the page size and returns to the first page.
func (r *Reconciler) SetPageSize(size int) error {
	if size <= 0 {
		return fmt.Errorf("page size must be positive, got %d", size)
	}
	r.mu.Lock()
	r.pageSize = size
	r.page = 0
	notify := r.onChange
	r.mu.Unlock()

	if notify != nil {
		notify()
	}
	return nil
}

// Page returns the current page index.
func (r *Reconciler) Page() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.page
}

// PageSize returns the current page size.
func (r *Reconciler) PageSize() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pageSize
}

// PageCount returns the number of pages at the current page size.
func (r *Reconciler) PageCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return pageCount(len(r.records), r.pageSize)
}

// CurrentPage returns the records of the current page.
func (r *Reconciler) CurrentPage() []model.JoinedRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slicePage(r.records, r.page, r.pageSize)
}

// View returns a consistent snapshot of the current page and its state.
func (r *Reconciler) View() View {
	r.mu.Lock()
	defer r.mu.Unlock()

	v := View{
		Records:  slicePage(r.records, r.page, r.pageSize),
		Page:     r.page,
		PageSize: r.pageSize,
		Total:    len(r.records),
	}
	if r.expanded != nil {
		id := *r.expanded
		v.Expanded = &id
	}
	return v
}

func slicePage(records []model.JoinedRecord, pageIndex, pageSize int) []model.JoinedRecord {
	if pageIndex < 0 || pageSize <= 0 {
		return []model.JoinedRecord{}
	}
	// pageIndex*pageSize and start+pageSize may overflow for huge sizes, so
	// bound the index by division and the end by the remaining length.
	if len(records) == 0 || pageIndex > (len(records)-1)/pageSize {
		return []model.JoinedRecord{}
	}
	start := pageIndex * pageSize
	end := start + min(pageSize, len(records)-start)

	out := make([]model.JoinedRecord, end-start)
	copy(out, records[start:end])
	return out
}

func pageCount(total, pageSize int) int {
	if pageSize <= 0 {
		return 0
	}
	n := total / pageSize
	if total%pageSize != 0 {
		n++
	}
	return n
}
