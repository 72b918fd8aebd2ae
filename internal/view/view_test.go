package view

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tradewatch/internal/types"
)

func row(accNumber int64, name string, balance float64, updatedAt time.Time) types.AccountWithHistory {
	var r types.AccountWithHistory
	r.AccNumber = accNumber
	r.Name = name
	r.Balance = decimal.NewFromFloat(balance)
	r.Equity = decimal.NewFromFloat(balance)
	if !updatedAt.IsZero() {
		r.History = &types.History{AccNumber: accNumber, UpdatedAt: updatedAt}
	}
	return r
}

func accNumbers(rows []types.AccountWithHistory) []int64 {
	out := make([]int64, len(rows))
	for i, r := range rows {
		out[i] = r.AccNumber
	}
	return out
}

func TestSortReverseIsExactReverse(t *testing.T) {
	now := time.Now()
	rows := []types.AccountWithHistory{
		row(1003, "charlie", 300, now),
		row(1001, "alpha", 100, now),
		row(1002, "bravo", 200, now),
	}

	asc := Sort(rows, SortByAccount, Asc)
	desc := Sort(rows, SortByAccount, Desc)

	got := accNumbers(asc)
	want := []int64{1001, 1002, 1003}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Ascending sort wrong: got %v", got)
		}
	}
	for i := range want {
		if desc[i].AccNumber != asc[len(asc)-1-i].AccNumber {
			t.Fatalf("Descending sort is not the exact reverse: %v vs %v",
				accNumbers(desc), accNumbers(asc))
		}
	}
}

func TestSortByNameCaseInsensitive(t *testing.T) {
	now := time.Now()
	rows := []types.AccountWithHistory{
		row(1, "Zeta", 0, now),
		row(2, "alpha", 0, now),
		row(3, "Beta", 0, now),
	}
	sorted := Sort(rows, SortByName, Asc)
	want := []string{"alpha", "Beta", "Zeta"}
	for i, r := range sorted {
		if r.Name != want[i] {
			t.Fatalf("Expected case-insensitive name order %v, got %s at %d", want, r.Name, i)
		}
	}
}

func TestSortIsStable(t *testing.T) {
	now := time.Now()
	rows := []types.AccountWithHistory{
		row(1001, "same", 100, now),
		row(1002, "same", 100, now),
		row(1003, "same", 100, now),
	}
	sorted := Sort(rows, SortByName, Asc)
	got := accNumbers(sorted)
	want := []int64{1001, 1002, 1003}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Stable sort must keep input order for equal keys, got %v", got)
		}
	}
}

func TestInactivePredicateBoundary(t *testing.T) {
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

	active := row(1001, "a", 0, now.Add(-4*time.Minute-59*time.Second))
	inactive := row(1002, "b", 0, now.Add(-5*time.Minute-1*time.Second))
	noHistory := row(1003, "c", 0, time.Time{})

	if !Fresh(active, now) {
		t.Error("Expected record updated 4:59 ago to be active")
	}
	if Fresh(inactive, now) {
		t.Error("Expected record updated 5:01 ago to be inactive")
	}
	if Fresh(noHistory, now) {
		t.Error("Expected record with no history to be inactive")
	}

	filtered := Filter([]types.AccountWithHistory{active, inactive, noHistory}, nil, true, now)
	got := accNumbers(filtered)
	if len(got) != 2 || got[0] != 1002 || got[1] != 1003 {
		t.Errorf("Expected inactive-only filter to keep 1002 and 1003, got %v", got)
	}
}

func TestFilterByCategory(t *testing.T) {
	now := time.Now()
	catA := int64(1)
	catB := int64(2)

	r1 := row(1001, "a", 0, now)
	r1.CategoryID = &catA
	r2 := row(1002, "b", 0, now)
	r2.CategoryID = &catB
	r3 := row(1003, "c", 0, now)

	filtered := Filter([]types.AccountWithHistory{r1, r2, r3}, &catA, false, now)
	if len(filtered) != 1 || filtered[0].AccNumber != 1001 {
		t.Errorf("Expected only the account in category 1, got %v", accNumbers(filtered))
	}
}

func TestPaginate(t *testing.T) {
	now := time.Now()
	var rows []types.AccountWithHistory
	for i := int64(1); i <= 25; i++ {
		rows = append(rows, row(1000+i, "acc", 0, now))
	}

	page1 := Paginate(rows, 1, 10)
	if len(page1) != 10 || page1[0].AccNumber != 1001 {
		t.Errorf("Expected first page of 10 starting at 1001, got %d rows", len(page1))
	}
	page3 := Paginate(rows, 3, 10)
	if len(page3) != 5 || page3[0].AccNumber != 1021 {
		t.Errorf("Expected last page of 5 starting at 1021, got %d rows", len(page3))
	}
	if got := Paginate(rows, 4, 10); got != nil {
		t.Errorf("Expected page past the end to be empty, got %d rows", len(got))
	}
	if got := Paginate(rows, 1, PageSizeAll); len(got) != 25 {
		t.Errorf("Expected sentinel page size to return everything, got %d rows", len(got))
	}
}

func TestReconcilePipeline(t *testing.T) {
	now := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	rows := []types.AccountWithHistory{
		row(1003, "charlie", 300, now.Add(-10*time.Minute)),
		row(1001, "alpha", 100, now.Add(-20*time.Minute)),
		row(1002, "bravo", 200, now), // fresh, filtered out
	}

	st := State{
		SortField:     SortByAccount,
		SortDirection: Asc,
		InactiveOnly:  true,
		Page:          1,
		PageSize:      PageSizeAll,
	}
	got := accNumbers(Reconcile(rows, st, now))
	if len(got) != 2 || got[0] != 1001 || got[1] != 1003 {
		t.Errorf("Expected reconciled view [1001 1003], got %v", got)
	}
}
