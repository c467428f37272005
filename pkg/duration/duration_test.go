package duration

import "testing"

func TestFormat(t *testing.T) {
	tests := []struct {
		seconds int
		want    string
	}{
		{0, "0:00"},
		{-5, "0:00"},
		{5, "0:05"},
		{65, "1:05"},
		{3599, "59:59"},
		{3600, "60:00"},
		{3659, "60:59"},
		{3660, "1:01:00"},
		{7384, "2:03:04"},
	}

	for _, tt := range tests {
		if got := Format(tt.seconds); got != tt.want {
			t.Errorf("Format(%d) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestSeconds(t *testing.T) {
	tests := []struct {
		in   float64
		want int
	}{
		{0, 0},
		{-1, 0},
		{212.9, 212},
		{65, 65},
	}
	for _, tt := range tests {
		if got := Seconds(tt.in); got != tt.want {
			t.Errorf("Seconds(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestParseISO8601(t *testing.T) {
	tests := map[string]int{
		"PT3M33S":  213,
		"PT1H2M3S": 3723,
		"PT45S":    45,
		"PT2H":     7200,
		"P1DT1S":   86401,
		"P0D":      0,
		"":         0,
		"3:33":     0,
	}
	for in, want := range tests {
		if got := ParseISO8601(in); got != want {
			t.Errorf("ParseISO8601(%q) = %d, want %d", in, got, want)
		}
	}
}
