package snap

import (
	"testing"
	"time"
)

func TestEven(t *testing.T) {
	tests := map[time.Duration]time.Duration{
		0:                                      0,
		-3 * time.Second:                       0,
		time.Second:                            0,
		2 * time.Second:                        2 * time.Second,
		481 * time.Second:                      480 * time.Second,
		481*time.Second + 900*time.Millisecond: 480 * time.Second,
		482*time.Second + 100*time.Millisecond: 482 * time.Second,
	}
	for in, want := range tests {
		if got := (Even{}).Snap(in); got != want {
			t.Fatalf("Even.Snap(%s) = %s, want %s", in, got, want)
		}
	}
}

func TestKeyframe(t *testing.T) {
	frames := []time.Duration{
		95500 * time.Millisecond,
		10 * time.Second,
		0,
		103 * time.Second,
	}
	k := NewKeyframe(frames, 8*time.Second)

	tests := []struct {
		name string
		in   time.Duration
		want time.Duration
	}{
		{"exact keyframe", 10 * time.Second, 10 * time.Second},
		{"snaps back to nearest before", 101 * time.Second, 94 * time.Second},
		{"odd keyframe forced even", 104 * time.Second, 102 * time.Second},
		{"outside window falls back to even", 50 * time.Second, 50 * time.Second},
		{"outside window odd", 51 * time.Second, 50 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := k.Snap(tt.in); got != tt.want {
				t.Fatalf("Snap(%s) = %s, want %s", tt.in, got, tt.want)
			}
			if got := k.Snap(tt.in); got > tt.in {
				t.Fatalf("Snap(%s) moved forward to %s", tt.in, got)
			}
		})
	}
}

func TestKeyframe_NoFrames(t *testing.T) {
	k := NewKeyframe(nil, 0)
	if got := k.Snap(37 * time.Second); got != 36*time.Second {
		t.Fatalf("Snap without keyframes = %s, want 36s", got)
	}
}

func TestKeyframe_UnboundedWindow(t *testing.T) {
	k := NewKeyframe([]time.Duration{4 * time.Second}, 0)
	if got := k.Snap(900 * time.Second); got != 4*time.Second {
		t.Fatalf("Snap = %s, want 4s", got)
	}
}

func TestEvenCeil(t *testing.T) {
	tests := map[time.Duration]time.Duration{
		0:                                  0,
		-time.Second:                       0,
		time.Second:                        2 * time.Second,
		180 * time.Second:                  180 * time.Second,
		181 * time.Second:                  182 * time.Second,
		180*time.Second + time.Millisecond: 182 * time.Second,
	}
	for in, want := range tests {
		if got := EvenCeil(in); got != want {
			t.Fatalf("EvenCeil(%s) = %s, want %s", in, got, want)
		}
	}
}

func TestValidMode(t *testing.T) {
	for _, m := range []string{ModeEven, ModeKeyframe, ModeNone} {
		if err := ValidMode(m); err != nil {
			t.Fatalf("ValidMode(%q): %v", m, err)
		}
	}
	if err := ValidMode("nearest"); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}
