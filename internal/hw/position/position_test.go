package position

import (
	"io"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/go-cmp/cmp"

	"github.com/cjeanneret/CourseNav/internal/logic/geometry"
)

func TestParseLine(t *testing.T) {
	cases := []struct {
		line    string
		want    geometry.Pose
		wantErr bool
	}{
		{"29.35 12.3 90", geometry.Pose{X: 29.35, Y: 12.3, Heading: 90}, false},
		{"  7.6\t8.9  359.9 ", geometry.Pose{X: 7.6, Y: 8.9, Heading: 359.9}, false},
		{"-1 -1 -1", geometry.UnavailablePose, false},
		{"1 2", geometry.Pose{}, true},
		{"1 2 3 4", geometry.Pose{}, true},
		{"a 2 3", geometry.Pose{}, true},
	}
	for _, tc := range cases {
		got, err := ParseLine(tc.line)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseLine(%q) error = %v, wantErr %v", tc.line, err, tc.wantErr)
			continue
		}
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Errorf("ParseLine(%q) mismatch (-want +got):\n%s", tc.line, diff)
		}
	}
}

func TestSource_NoFixIsUnavailable(t *testing.T) {
	s := NewSource(nil, clock.NewMock(), 500*time.Millisecond)
	if got := s.Pose(); got != geometry.UnavailablePose {
		t.Errorf("Pose() = %+v, want unavailable", got)
	}
}

func TestSource_Staleness(t *testing.T) {
	mock := clock.NewMock()
	s := NewSource(nil, mock, 500*time.Millisecond)
	fix := geometry.Pose{X: 10, Y: 20, Heading: 45}
	s.Update(fix)

	mock.Add(400 * time.Millisecond)
	if got := s.Pose(); got != fix {
		t.Errorf("fresh Pose() = %+v, want %+v", got, fix)
	}
	mock.Add(200 * time.Millisecond)
	if got := s.Pose(); got != geometry.UnavailablePose {
		t.Errorf("stale Pose() = %+v, want unavailable", got)
	}
}

func TestSource_ReadsStream(t *testing.T) {
	pr, pw := io.Pipe()
	s := NewSource(pr, clock.NewMock(), 0)
	s.Start()

	go func() {
		_, _ = io.WriteString(pw, "garbage\n\n1 2 3\n4.5 6.5 270\n")
		_ = pw.Close()
	}()
	<-s.done

	want := geometry.Pose{X: 4.5, Y: 6.5, Heading: 270}
	if got := s.Pose(); got != want {
		t.Errorf("Pose() = %+v, want %+v", got, want)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
