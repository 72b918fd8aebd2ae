// Package view recomputes the dashboard's derived presentation state
// from freshly fetched rows. Sort, filter and pagination are pure
// functions of (base list, view state): no caching, no hidden
// staleness, recomputed whenever either input changes.
package view

import (
	"sort"
	"strings"
	"time"

	"tradewatch/internal/types"
)

// SortField selects the column the listing is ordered by.
type SortField string

const (
	SortByAccount    SortField = "account"
	SortByName       SortField = "name"
	SortByBalance    SortField = "balance"
	SortByEquity     SortField = "equity"
	SortByLastUpdate SortField = "last_update"
)

// SortDirection is ascending or descending.
type SortDirection string

const (
	Asc  SortDirection = "asc"
	Desc SortDirection = "desc"
)

// InactiveAfter is how long an account may go without a history update
// before it counts as inactive.
const InactiveAfter = 5 * time.Minute

// PageSizeAll is the sentinel page size meaning no pagination.
const PageSizeAll = -1

// State is the view's current sort/filter/pagination selection.
type State struct {
	SortField     SortField
	SortDirection SortDirection
	CategoryID    *int64
	InactiveOnly  bool
	Page          int
	PageSize      int
}

// Sort returns a newly ordered copy of rows. The sort is stable and
// text fields compare case-insensitively.
func Sort(rows []types.AccountWithHistory, field SortField, dir SortDirection) []types.AccountWithHistory {
	out := make([]types.AccountWithHistory, len(rows))
	copy(out, rows)

	less := func(a, b types.AccountWithHistory) bool {
		switch field {
		case SortByName:
			return strings.ToLower(a.Name) < strings.ToLower(b.Name)
		case SortByBalance:
			return a.Balance.LessThan(b.Balance)
		case SortByEquity:
			return a.Equity.LessThan(b.Equity)
		case SortByLastUpdate:
			return lastUpdate(a).Before(lastUpdate(b))
		default:
			return a.AccNumber < b.AccNumber
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if dir == Desc {
			return less(out[j], out[i])
		}
		return less(out[i], out[j])
	})
	return out
}

func lastUpdate(r types.AccountWithHistory) time.Time {
	if r.History == nil {
		return time.Time{}
	}
	return r.History.UpdatedAt
}

// Fresh reports whether the row saw a history update within the last
// five minutes. A row with no history at all is never fresh.
func Fresh(r types.AccountWithHistory, now time.Time) bool {
	if r.History == nil {
		return false
	}
	return now.Sub(r.History.UpdatedAt) <= InactiveAfter
}

// Filter narrows rows by the optional category selector and, when
// inactiveOnly is set, to rows with no recent history update.
func Filter(rows []types.AccountWithHistory, categoryID *int64, inactiveOnly bool, now time.Time) []types.AccountWithHistory {
	out := make([]types.AccountWithHistory, 0, len(rows))
	for _, r := range rows {
		if categoryID != nil && (r.CategoryID == nil || *r.CategoryID != *categoryID) {
			continue
		}
		if inactiveOnly && Fresh(r, now) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Paginate returns the requested 1-based page. A pageSize of
// PageSizeAll returns everything; a page past the end is empty.
func Paginate(rows []types.AccountWithHistory, page, pageSize int) []types.AccountWithHistory {
	if pageSize == PageSizeAll {
		return rows
	}
	if page < 1 || pageSize < 1 {
		return nil
	}
	start := (page - 1) * pageSize
	if start >= len(rows) {
		return nil
	}
	end := start + pageSize
	if end > len(rows) {
		end = len(rows)
	}
	return rows[start:end]
}

// Reconcile applies the full filter → sort → paginate pipeline to a
// fresh base list.
func Reconcile(rows []types.AccountWithHistory, st State, now time.Time) []types.AccountWithHistory {
	filtered := Filter(rows, st.CategoryID, st.InactiveOnly, now)
	sorted := Sort(filtered, st.SortField, st.SortDirection)
	return Paginate(sorted, st.Page, st.PageSize)
}
