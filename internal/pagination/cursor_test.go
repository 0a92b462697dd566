package pagination

import (
	"errors"
	"testing"
	"time"
)

func TestCursorRoundTrip(t *testing.T) {
	original := Cursor{CreatedAt: time.Date(2024, 3, 1, 10, 30, 0, 123456789, time.UTC), ID: "7b1f"}

	token := original.Encode()
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	decoded, err := Decode(token)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !decoded.CreatedAt.Equal(original.CreatedAt) || decoded.ID != original.ID {
		t.Fatalf("round trip mismatch: %+v vs %+v", decoded, original)
	}
}

func TestDecodeEmptyTokenIsStart(t *testing.T) {
	c, err := Decode("  ")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !c.IsZero() {
		t.Fatalf("expected zero cursor, got %+v", c)
	}
	if (Cursor{}).Encode() != "" {
		t.Fatal("expected zero cursor to encode to empty token")
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	for _, token := range []string{"%%%", "bm9waXBl", "MTIzfA", "YWJjfGlk"} {
		if _, err := Decode(token); !errors.Is(err, ErrInvalidCursor) {
			t.Fatalf("token %q: expected ErrInvalidCursor got %v", token, err)
		}
	}
}

func TestLimit(t *testing.T) {
	cases := map[int]int{0: DefaultPageSize, -3: DefaultPageSize, 7: 7, 500: MaxPageSize}
	for in, want := range cases {
		if got := Limit(in); got != want {
			t.Fatalf("Limit(%d) = %d want %d", in, got, want)
		}
	}
}

func TestNewPage(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	key := func(i int) Cursor { return Cursor{CreatedAt: base.Add(time.Duration(i) * time.Hour), ID: "id"} }

	full := NewPage([]int{3, 2}, 2, key)
	if !full.HasMore || full.NextCursor == "" {
		t.Fatalf("expected full page to advertise more: %+v", full)
	}
	next, err := Decode(full.NextCursor)
	if err != nil {
		t.Fatalf("decode next cursor: %v", err)
	}
	if !next.CreatedAt.Equal(base.Add(2 * time.Hour)) {
		t.Fatalf("expected cursor at last item, got %v", next.CreatedAt)
	}

	partial := NewPage([]int{1}, 2, key)
	if partial.HasMore || partial.NextCursor != "" {
		t.Fatalf("expected short page to be final: %+v", partial)
	}

	empty := NewPage[int](nil, 5, key)
	if empty.Items == nil || len(empty.Items) != 0 {
		t.Fatal("expected empty non-nil items")
	}
}
