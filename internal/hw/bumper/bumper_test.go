package bumper

import (
	"testing"

	"github.com/cjeanneret/CourseNav/internal/hw/gpio"
)

func TestBumpers_Contacts(t *testing.T) {
	cases := []struct {
		name                  string
		leftLevel, rightLevel gpio.Level
		wantLeft, wantRight   bool
	}{
		{"released", gpio.High, gpio.High, false, false},
		{"left_pressed", gpio.Low, gpio.High, true, false},
		{"right_pressed", gpio.High, gpio.Low, false, true},
		{"both_pressed", gpio.Low, gpio.Low, true, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			drv := gpio.NewMockDriver()
			b, err := New(drv, 22, 23)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			drv.SetLevel(22, tc.leftLevel)
			drv.SetLevel(23, tc.rightLevel)
			l, r, err := b.Contacts()
			if err != nil {
				t.Fatalf("Contacts: %v", err)
			}
			if l != tc.wantLeft || r != tc.wantRight {
				t.Errorf("Contacts() = %v, %v, want %v, %v", l, r, tc.wantLeft, tc.wantRight)
			}
		})
	}
}

func TestNew_PullsUp(t *testing.T) {
	drv := gpio.NewMockDriver()
	b, err := New(drv, 22, 23)
	if err != nil {
		t.Fatal(err)
	}
	if mode, _ := drv.Mode(22); mode != gpio.InputPullUp {
		t.Errorf("left pin mode = %v, want input-pullup", mode)
	}
	// Pulled-up pins read released until something grounds them.
	if l, r, _ := b.Contacts(); l || r {
		t.Errorf("fresh bumpers report contact: %v, %v", l, r)
	}
}
