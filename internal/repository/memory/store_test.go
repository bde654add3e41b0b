package memory

import (
	"testing"

	"github.com/google/uuid"

	"github.com/vedran77/decsecmsg/internal/repository"
	"github.com/vedran77/decsecmsg/internal/repository/repotest"
)

func TestGatewayContract(t *testing.T) {
	repotest.Run(t, func(t *testing.T) *repository.Gateway {
		return New().Gateway()
	})
}

func TestTableFindSortLimit(t *testing.T) {
	tbl := newTable[int]()
	for i, v := range []int{5, 3, 9, 1} {
		tbl.insert(idFor(i), v)
	}

	all := tbl.find(query[int]{})
	if len(all) != 4 || all[0] != 5 || all[3] != 1 {
		t.Fatalf("expected insertion order, got %v", all)
	}

	top := tbl.find(query[int]{
		match: either(func(v int) bool { return v > 4 }, func(v int) bool { return v == 1 }),
		cmp:   func(a, b int) int { return b - a },
		limit: 2,
	})
	if len(top) != 2 || top[0] != 9 || top[1] != 5 {
		t.Fatalf("expected [9 5], got %v", top)
	}

	if !tbl.update(idFor(1), func(v *int) { *v = 30 }) {
		t.Fatalf("expected update to find row")
	}
	if v, _ := tbl.get(idFor(1)); v != 30 {
		t.Fatalf("expected updated value 30, got %d", v)
	}
	if tbl.update(idFor(99), func(v *int) {}) {
		t.Fatalf("expected update of unknown id to report false")
	}
}

func idFor(i int) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte{byte(i)})
}
