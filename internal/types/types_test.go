package types

import (
	"encoding/json"
	"testing"
	"time"
)

func TestCentsJSON(t *testing.T) {
	tests := []struct {
		in   Cents
		want string
	}{
		{0, "0.00"},
		{40400, "404.00"},
		{12345, "123.45"},
		{5, "0.05"},
		{-250, "-2.50"},
	}
	for _, tt := range tests {
		b, err := json.Marshal(tt.in)
		if err != nil {
			t.Fatalf("marshal %d: %v", tt.in, err)
		}
		if string(b) != tt.want {
			t.Errorf("marshal %d = %s, want %s", tt.in, b, tt.want)
		}
	}

	var c Cents
	if err := json.Unmarshal([]byte("19.99"), &c); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if c != 1999 {
		t.Errorf("unmarshal 19.99 = %d, want 1999", c)
	}
	if err := json.Unmarshal([]byte(`"7"`), &c); err != nil {
		t.Fatalf("unmarshal quoted: %v", err)
	}
	if c != 700 {
		t.Errorf("unmarshal \"7\" = %d, want 700", c)
	}
}

func TestDaysCeil(t *testing.T) {
	start := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	if got := DaysCeil(start, start.AddDate(0, 0, 3)); got != 3 {
		t.Errorf("3 days = %d", got)
	}
	if got := DaysCeil(start, start.Add(49*time.Hour)); got != 3 {
		t.Errorf("49h = %d, want 3", got)
	}
	if got := DaysCeil(start.Add(12*time.Hour), start); got != 0 {
		t.Errorf("-12h = %d, want 0", got)
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2026-06-01")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if d.Month() != time.June || d.Day() != 1 || d.Location() != time.UTC {
		t.Errorf("unexpected date %v", d)
	}
	if _, err := ParseDate("06/01/2026"); err == nil {
		t.Error("expected error for bad layout")
	}
	if got := FormatDate(DateOf(d.Add(23 * time.Hour))); got != "2026-06-01" {
		t.Errorf("DateOf = %s", got)
	}
}
