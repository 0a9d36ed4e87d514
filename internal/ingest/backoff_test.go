package ingest

import (
	"testing"
	"time"
)

func TestNextBackoff(t *testing.T) {
	tests := []struct {
		name string
		in   time.Duration
		want time.Duration
	}{
		{"doubles below the cap", 2500 * time.Millisecond, 5 * time.Second},
		{"just under the cap stays capped", 59 * time.Second, maxBackoff},
		{"at the cap stays capped", maxBackoff, maxBackoff},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := nextBackoff(tt.in); got != tt.want {
				t.Errorf("nextBackoff(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
