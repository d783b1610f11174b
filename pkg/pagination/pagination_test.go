package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestCursorRoundTrip(t *testing.T) {
	want := Cursor{CreatedAt: time.Date(2026, 3, 1, 10, 0, 0, 123, time.UTC), ID: uuid.New()}
	got, err := ParseCursor(EncodeCursor(want))
	if err != nil {
		t.Fatalf("parse cursor: %v", err)
	}
	if !got.CreatedAt.Equal(want.CreatedAt) || got.ID != want.ID {
		t.Fatalf("cursor mismatch: got %+v want %+v", got, want)
	}
}

func TestParseCursorRejectsGarbage(t *testing.T) {
	if c, err := ParseCursor(""); err != nil || c != nil {
		t.Fatalf("empty cursor should be nil, got %v %v", c, err)
	}
	if _, err := ParseCursor("!!"); err == nil {
		t.Fatal("expected decode error")
	}
	if _, err := Scope(Params{Cursor: "bm9waXBl"}); err == nil {
		t.Fatal("expected scope to reject malformed cursor")
	}
}

func TestTrimSetsNextCursorOnlyWhenMoreRows(t *testing.T) {
	type row struct {
		id uuid.UUID
		at time.Time
	}
	now := time.Now().UTC()
	rows := []row{{uuid.New(), now}, {uuid.New(), now.Add(-time.Minute)}, {uuid.New(), now.Add(-2 * time.Minute)}}
	cursorOf := func(r row) Cursor { return Cursor{CreatedAt: r.at, ID: r.id} }

	page := Trim(rows, Params{Limit: 2}, cursorOf)
	if len(page.Items) != 2 || page.NextCursor == "" {
		t.Fatalf("expected 2 items with cursor, got %d %q", len(page.Items), page.NextCursor)
	}
	next, _ := ParseCursor(page.NextCursor)
	if next.ID != rows[1].id {
		t.Fatalf("cursor should point at last kept row")
	}

	last := Trim(rows[:1], Params{Limit: 2}, cursorOf)
	if len(last.Items) != 1 || last.NextCursor != "" {
		t.Fatalf("unexpected final page %+v", last)
	}

	empty := Trim[row](nil, Params{}, cursorOf)
	if empty.Items == nil {
		t.Fatal("items should encode as an empty list")
	}
}

func TestNormalizeLimit(t *testing.T) {
	cases := map[int]int{0: DefaultLimit, -3: DefaultLimit, 10: 10, 1000: MaxLimit}
	for in, want := range cases {
		if got := NormalizeLimit(in); got != want {
			t.Fatalf("NormalizeLimit(%d) = %d, want %d", in, got, want)
		}
	}
}
