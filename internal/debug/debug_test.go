package debug

import (
	"bytes"
	"strings"
	"testing"
)

func TestInit_LevelGating(t *testing.T) {
	var buf bytes.Buffer
	Init(LevelInfo)
	SetOutput(&buf)
	defer Init(LevelOff)

	Info("mission %s", "supplies")
	Live("should not appear")
	Verbose("should not appear either")
	Sync()

	got := buf.String()
	if !strings.Contains(got, "mission supplies") {
		t.Errorf("expected info line, got %q", got)
	}
	if strings.Contains(got, "should not appear") {
		t.Errorf("live/verbose lines leaked at info level: %q", got)
	}
}

func TestInit_OffProducesNothing(t *testing.T) {
	var buf bytes.Buffer
	Init(LevelOff)
	SetOutput(&buf)

	Info("hidden")
	Error(nil)
	Sync()

	if buf.Len() != 0 {
		t.Errorf("expected no output at level 0, got %q", buf.String())
	}
}

func TestStructuredHelpers(t *testing.T) {
	var buf bytes.Buffer
	Init(LevelTrace)
	SetOutput(&buf)
	defer Init(LevelOff)

	Drive("drive", 20, 12)
	LineState("LEFT", 20, 15)
	Pose(1, 2, 90)
	GPIO("WritePin", 17, true)
	Sync()

	got := buf.String()
	for _, want := range []string{"drive", "LEFT", "pose", "WritePin"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q: %q", want, got)
		}
	}
}

func TestIsEnabled(t *testing.T) {
	Init(LevelLive)
	defer Init(LevelOff)

	if !IsEnabled(LevelInfo) || !IsEnabled(LevelLive) {
		t.Error("info and live should be enabled at level 2")
	}
	if IsEnabled(LevelVerbose) {
		t.Error("verbose should be disabled at level 2")
	}
	if Level() != LevelLive {
		t.Errorf("Level() = %d, want %d", Level(), LevelLive)
	}
}

func TestFmt(t *testing.T) {
	Init(LevelOff)
	if got := Fmt("%d", 1); got != "" {
		t.Errorf("Fmt at level 0 = %q, want empty", got)
	}
	Init(LevelInfo)
	defer Init(LevelOff)
	if got := Fmt("%d", 1); got != "1" {
		t.Errorf("Fmt = %q, want \"1\"", got)
	}
}
