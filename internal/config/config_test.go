package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// ---------- ValidateConfigPath ----------

func TestValidateConfigPath_Valid(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "configs")
	if err := os.Mkdir(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(cfgDir, "default.yaml")
	if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := ValidateConfigPath(path); err != nil {
		t.Errorf("expected valid path, got error: %v", err)
	}
}

func TestValidateConfigPath_PathTraversal(t *testing.T) {
	cases := []string{
		"../../etc/passwd",
		"configs/../../../etc/shadow",
		"../configs/course.yaml",
	}
	for _, path := range cases {
		if err := ValidateConfigPath(path); err == nil {
			t.Errorf("expected error for traversal path %q, got nil", path)
		}
	}
}

func TestValidateConfigPath_WrongExtension(t *testing.T) {
	cases := []string{
		"configs/default.json",
		"configs/default.yml",
		"configs/default.txt",
		"configs/default",
	}
	for _, path := range cases {
		if err := ValidateConfigPath(path); err == nil {
			t.Errorf("expected error for extension in %q, got nil", path)
		}
	}
}

func TestValidateConfigPath_NotInConfigsDir(t *testing.T) {
	cases := []string{
		"other/default.yaml",
		"default.yaml",
		"/tmp/default.yaml",
	}
	for _, path := range cases {
		if err := ValidateConfigPath(path); err == nil {
			t.Errorf("expected error for path outside configs/ %q, got nil", path)
		}
	}
}

func TestValidateConfigPath_EmptyPath(t *testing.T) {
	if err := ValidateConfigPath(""); err == nil {
		t.Error("expected error for empty path, got nil")
	}
}

// ---------- Load ----------

// writeConfig creates a temporary configs/ dir with the given YAML content and returns the path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "configs")
	if err := os.Mkdir(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(cfgDir, "test.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const validYAML = `
drive:
  counts_per_inch: 33.74
  left_counts_per_degree: 1.99
  right_counts_per_degree: 2.05
  proportional_gain: 0.07
  right_offset_percent: 2
heading:
  tolerance_deg: 0.5
  pulse_deg: 0.1
  pulse_power: 15
  settle_ms: 50
navigator:
  strategy: direct
  bearing_table: mirrored
line:
  threshold: 3.0
  polarity: above
  off_line_policy: spin
hardware:
  left_motor: {pwm_pin: 12, dir_pin: 5}
  right_motor: {pwm_pin: 13, dir_pin: 6, inverted: true}
  left_encoder_pin: 17
  right_encoder_pin: 27
  left_bumper_pin: 22
  right_bumper_pin: 23
  line_left_channel: 0
  line_mid_channel: 1
  line_right_channel: 2
position:
  device: /dev/ttyUSB0
  baud: 9600
locations:
  supplies: {x: 29.35, y: 12.3}
  start: {x: 7.6, y: 8.9}
missions:
  supplies:
    - op: drive
      power: 20
      inches: 3
    - op: move_to
      at: supplies
defaults:
  debug_level: 2
  tick_ms: 20
`

func TestLoad_ValidFullConfig(t *testing.T) {
	path := writeConfig(t, validYAML)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Drive.RightCountsPerDegree != 2.05 {
		t.Errorf("drive.right_counts_per_degree = %v, want 2.05", cfg.Drive.RightCountsPerDegree)
	}
	if cfg.Drive.RightOffsetPercent != 2 {
		t.Errorf("drive.right_offset_percent = %v, want 2", cfg.Drive.RightOffsetPercent)
	}
	if cfg.Navigator.Strategy != "direct" {
		t.Errorf("navigator.strategy = %q, want \"direct\"", cfg.Navigator.Strategy)
	}
	if cfg.Line.Polarity != "above" || cfg.Line.OffLinePolicy != "spin" {
		t.Errorf("line = %+v, want polarity above / spin", cfg.Line)
	}
	if !cfg.Hardware.RightMotor.Inverted {
		t.Error("right motor should be inverted")
	}
	if cfg.Position.Baud != 9600 {
		t.Errorf("position.baud = %d, want 9600", cfg.Position.Baud)
	}
	if loc, ok := cfg.Locations["supplies"]; !ok || loc.X != 29.35 || loc.Y != 12.3 {
		t.Errorf("locations.supplies = %+v, %v", loc, ok)
	}
	if len(cfg.Missions["supplies"]) != 2 {
		t.Errorf("missions.supplies has %d steps, want 2", len(cfg.Missions["supplies"]))
	}
	if cfg.Tick() != 20*time.Millisecond {
		t.Errorf("Tick() = %v, want 20ms", cfg.Tick())
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	path := writeConfig(t, "hardware:\n  mock: true\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	checks := []struct {
		name      string
		got, want float64
	}{
		{"counts_per_inch", cfg.Drive.CountsPerInch, 33.74},
		{"left_counts_per_degree", cfg.Drive.LeftCountsPerDegree, 1.99},
		{"right_counts_per_degree", cfg.Drive.RightCountsPerDegree, 1.99},
		{"proportional_gain", cfg.Drive.ProportionalGain, 0.07},
		{"tolerance_deg", cfg.Heading.ToleranceDeg, 0.7},
		{"pulse_deg", cfg.Heading.PulseDeg, 0.5},
		{"axis_tolerance", cfg.Navigator.AxisTolerance, 1},
		{"nudge_inches", cfg.Navigator.NudgeInches, 0.5},
		{"threshold", cfg.Line.Threshold, 2.9},
		{"drift_fraction", cfg.Line.DriftFraction, 0.75},
		{"far_drift_fraction", cfg.Line.FarDriftFraction, 0.5},
		{"boost_percent", cfg.Wall.BoostPercent, 5},
		{"cut_percent", cfg.Wall.CutPercent, 10},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s default = %v, want %v", c.name, c.got, c.want)
		}
	}
	if cfg.Navigator.Strategy != "axis" {
		t.Errorf("strategy default = %q, want \"axis\"", cfg.Navigator.Strategy)
	}
	if cfg.Navigator.BearingTable != "standard" {
		t.Errorf("bearing_table default = %q, want \"standard\"", cfg.Navigator.BearingTable)
	}
	if cfg.Line.OffLinePolicy != "straight" {
		t.Errorf("off_line_policy default = %q, want \"straight\"", cfg.Line.OffLinePolicy)
	}
	if cfg.SafetyTimeout() != 0 {
		t.Errorf("safety timeout default = %v, want 0 (disabled)", cfg.SafetyTimeout())
	}
	if cfg.HeadingTimeout() != 0 {
		t.Errorf("heading timeout default = %v, want 0 (disabled)", cfg.HeadingTimeout())
	}
	if cfg.Settle() != 100*time.Millisecond {
		t.Errorf("Settle() = %v, want 100ms", cfg.Settle())
	}
	if cfg.Tick() != 10*time.Millisecond {
		t.Errorf("Tick() = %v, want 10ms", cfg.Tick())
	}
}

func TestLoad_ExplicitZeroTunables(t *testing.T) {
	path := writeConfig(t, `hardware:
  mock: true
drive:
  proportional_gain: 0
wall:
  boost_percent: 0
  cut_percent: 0
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Drive.ProportionalGain != 0 {
		t.Errorf("proportional_gain = %v, want explicit 0 kept", cfg.Drive.ProportionalGain)
	}
	if cfg.Wall.BoostPercent != 0 || cfg.Wall.CutPercent != 0 {
		t.Errorf("boost/cut = %v/%v, want explicit 0/0 kept", cfg.Wall.BoostPercent, cfg.Wall.CutPercent)
	}
	// Untouched zero-default siblings still get their defaults.
	if cfg.Drive.CountsPerInch != 33.74 {
		t.Errorf("counts_per_inch = %v, want default", cfg.Drive.CountsPerInch)
	}
}

func TestLoad_InvalidEnums(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"strategy", "navigator:\n  strategy: zigzag\n"},
		{"bearing_table", "navigator:\n  bearing_table: atan2\n"},
		{"polarity", "line:\n  polarity: sideways\n"},
		{"off_line_policy", "line:\n  off_line_policy: reverse\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, "hardware:\n  mock: true\n"+tc.yaml)
			if _, err := Load(path); err == nil {
				t.Errorf("expected error for invalid %s, got nil", tc.name)
			}
		})
	}
}

func TestLoad_FractionsOutOfRange(t *testing.T) {
	cases := []struct {
		name     string
		drift    float64
		farDrift float64
	}{
		{"drift_over_one", 1.5, 0.5},
		{"drift_negative", -0.5, 0.5},
		{"far_greater_than_drift", 0.5, 0.75},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			yaml := "hardware:\n  mock: true\nline:\n  drift_fraction: " + formatFloat(tc.drift) +
				"\n  far_drift_fraction: " + formatFloat(tc.farDrift) + "\n"
			path := writeConfig(t, yaml)
			if _, err := Load(path); err == nil {
				t.Errorf("expected error for drift=%v far=%v, got nil", tc.drift, tc.farDrift)
			}
		})
	}
}

func TestLoad_MissingPositionDevice(t *testing.T) {
	path := writeConfig(t, "hardware:\n  mock: false\n")
	if _, err := Load(path); err == nil {
		t.Error("expected error for missing position.device on real hardware, got nil")
	}
}

func TestLoad_UnknownLocationInMission(t *testing.T) {
	yaml := `
hardware:
  mock: true
missions:
  lost:
    - op: move_to
      at: nowhere
`
	path := writeConfig(t, yaml)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for unknown location, got nil")
	}
	if !strings.Contains(err.Error(), "nowhere") {
		t.Errorf("error should name the location, got %v", err)
	}
}

func TestLoad_StepWithoutOp(t *testing.T) {
	yaml := `
hardware:
  mock: true
missions:
  broken:
    - power: 20
`
	path := writeConfig(t, yaml)
	if _, err := Load(path); err == nil {
		t.Error("expected error for step without op, got nil")
	}
}

func TestLoad_UnknownStepOp(t *testing.T) {
	yaml := `
hardware:
  mock: true
missions:
  broken:
    - op: fly
`
	path := writeConfig(t, yaml)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for unknown op, got nil")
	}
	if !strings.Contains(err.Error(), `"fly"`) {
		t.Errorf("error should name the op, got %v", err)
	}
}

func TestLoad_DebugLevelOutOfRange(t *testing.T) {
	path := writeConfig(t, "hardware:\n  mock: true\ndefaults:\n  debug_level: 9\n")
	if _, err := Load(path); err == nil {
		t.Error("expected error for debug_level 9, got nil")
	}
}

func TestLoad_FileTooLarge(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "configs")
	if err := os.Mkdir(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(cfgDir, "big.yaml")
	data := make([]byte, MaxConfigFileBytes+1)
	for i := range data {
		data[i] = '#'
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(path)
	if err == nil {
		t.Error("expected error for oversized config file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "{{{{invalid yaml!!!!")
	_, err := Load(path)
	if err == nil {
		t.Error("expected error for invalid YAML, got nil")
	}
}

func TestLoad_EmptyFile(t *testing.T) {
	path := writeConfig(t, "")
	_, err := Load(path)
	if err == nil {
		t.Error("expected error for empty config (position.device missing), got nil")
	}
}

func TestLoad_UnknownFields(t *testing.T) {
	yaml := `
hardware:
  mock: true
unknown_section:
  foo: bar
`
	path := writeConfig(t, yaml)
	_, err := Load(path)
	if err != nil {
		t.Errorf("unknown fields should be ignored, got error: %v", err)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "configs", "nonexistent.yaml")
	_, err := Load(path)
	if err == nil {
		t.Error("expected error for nonexistent file, got nil")
	}
}

// ---------- Helper methods ----------

func TestConfig_DurationAccessors(t *testing.T) {
	cfg := &Config{
		Drive:     DriveConfig{BrakeMs: 40},
		Heading:   HeadingConfig{SettleMs: 50, TimeoutMs: 3000},
		Navigator: NavigatorConfig{LockTimeoutMs: 2000, LockPollMs: 25},
		Wall:      WallConfig{TimeoutMs: 4000},
		Position:  PositionConfig{StaleMs: 500},
		Defaults:  DefaultsConfig{TickMs: 10, SafetyTimeoutMs: 15000},
	}
	cases := []struct {
		name string
		got  time.Duration
		want time.Duration
	}{
		{"Tick", cfg.Tick(), 10 * time.Millisecond},
		{"SafetyTimeout", cfg.SafetyTimeout(), 15 * time.Second},
		{"Settle", cfg.Settle(), 50 * time.Millisecond},
		{"HeadingTimeout", cfg.HeadingTimeout(), 3 * time.Second},
		{"LockTimeout", cfg.LockTimeout(), 2 * time.Second},
		{"LockPoll", cfg.LockPoll(), 25 * time.Millisecond},
		{"Brake", cfg.Brake(), 40 * time.Millisecond},
		{"WallTimeout", cfg.WallTimeout(), 4 * time.Second},
		{"PositionStale", cfg.PositionStale(), 500 * time.Millisecond},
	}
	for _, tc := range cases {
		if tc.got != tc.want {
			t.Errorf("%s() = %v, want %v", tc.name, tc.got, tc.want)
		}
	}
}

func TestConfig_MissionNamesSorted(t *testing.T) {
	cfg := &Config{Missions: map[string][]StepConfig{
		"switches": nil,
		"button":   nil,
		"supplies": nil,
	}}
	got := cfg.MissionNames()
	want := []string{"button", "supplies", "switches"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("MissionNames() = %v, want %v", got, want)
	}
}

func TestConfig_LocationNamesSorted(t *testing.T) {
	cfg := &Config{Locations: map[string]Location{
		"START":    {X: 7.6, Y: 8.9},
		"DROP_OFF": {X: 5.5, Y: 48},
		"SUPPLIES": {X: 29.35, Y: 12.3},
	}}
	got := cfg.LocationNames()
	want := []string{"DROP_OFF", "START", "SUPPLIES"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("LocationNames() = %v, want %v", got, want)
	}
}

// formatFloat is a test helper for embedding floats into YAML strings.
func formatFloat(f float64) string {
	return fmt.Sprintf("%g", f)
}

func TestLoad_ShippedDefault(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "default.yaml"))
	if err != nil {
		t.Fatalf("configs/default.yaml does not load: %v", err)
	}
	if !cfg.Hardware.Mock {
		t.Error("shipped config should run the simulated robot")
	}
	for _, name := range []string{"START", "SUPPLIES", "FUEL_LIGHT", "DROP_OFF"} {
		if _, ok := cfg.Locations[name]; !ok {
			t.Errorf("location %s missing", name)
		}
	}
	if len(cfg.MissionNames()) == 0 {
		t.Error("no missions in shipped config")
	}
	if cfg.WallTimeout() <= 0 {
		t.Error("shipped config should bound drive-to-wall with a timeout")
	}
}
