package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseDateFormats(t *testing.T) {
	want := NewDate(2026, time.February, 3)
	for _, in := range []string{"2026-02-03", "2026-02-03T14:30:00", "2026-02-03T14:30:00Z"} {
		got, err := ParseDate(in)
		if err != nil {
			t.Fatalf("parse %q: %v", in, err)
		}
		if got != want {
			t.Fatalf("parse %q: got %v", in, got)
		}
	}
	if _, err := ParseDate("03.02.2026"); err == nil {
		t.Fatalf("expected error for unsupported format")
	}
}

func TestDateJSONRoundTrip(t *testing.T) {
	d := NewDate(2026, time.July, 9)
	b, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `"2026-07-09"` {
		t.Fatalf("unexpected encoding %s", b)
	}
	var back Date
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back != d {
		t.Fatalf("round trip mismatch: %v", back)
	}
}

func TestDaysUntil(t *testing.T) {
	a := NewDate(2026, time.January, 30)
	b := NewDate(2026, time.February, 2)
	if got := a.DaysUntil(b); got != 3 {
		t.Fatalf("expected 3 days, got %d", got)
	}
	if got := b.DaysUntil(a); got != -3 {
		t.Fatalf("expected -3 days, got %d", got)
	}
}
