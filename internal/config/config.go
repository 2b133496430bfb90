package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// MaxConfigFileBytes bounds the size of a config file read by Load.
const MaxConfigFileBytes = 1 << 20

// DriveConfig holds the encoder calibration and straight-line correction.
type DriveConfig struct {
	CountsPerInch        float64 `yaml:"counts_per_inch"`
	LeftCountsPerDegree  float64 `yaml:"left_counts_per_degree"`  // used when turning left
	RightCountsPerDegree float64 `yaml:"right_counts_per_degree"` // used when turning right
	ProportionalGain     float64 `yaml:"proportional_gain"`       // percent per count of left/right divergence. 0 = open loop
	RightOffsetPercent   float64 `yaml:"right_offset_percent"`    // added to the right wheel's initial command
	BrakePercent         float64 `yaml:"brake_percent"`           // reverse pulse at the end of a drive. 0 = none
	BrakeMs              int     `yaml:"brake_ms"`
}

// HeadingConfig tunes the pulse-based heading controller.
type HeadingConfig struct {
	ToleranceDeg float64 `yaml:"tolerance_deg"`
	PulseDeg     float64 `yaml:"pulse_deg"`
	PulsePower   float64 `yaml:"pulse_power"`
	SettleMs     int     `yaml:"settle_ms"`    // pause after each pulse
	TimeoutMs    int     `yaml:"timeout_ms"`   // 0 = no timeout
	MaxDropouts  int     `yaml:"max_dropouts"` // consecutive unavailable readings before giving up
	CoarsePower  float64 `yaml:"coarse_power"` // power of the encoder turn before fine correction
}

// NavigatorConfig tunes coordinate navigation.
type NavigatorConfig struct {
	Strategy      string  `yaml:"strategy"` // "axis" or "direct"
	AxisTolerance float64 `yaml:"axis_tolerance"`
	NudgeInches   float64 `yaml:"nudge_inches"`
	NudgePower    float64 `yaml:"nudge_power"`
	DrivePower    float64 `yaml:"drive_power"`
	BearingTable  string  `yaml:"bearing_table"`   // "standard" or "mirrored"
	LockTimeoutMs int     `yaml:"lock_timeout_ms"` // 0 = wait forever
	LockPollMs    int     `yaml:"lock_poll_ms"`
}

// LineConfig holds the line classification threshold and the correction policy.
type LineConfig struct {
	Threshold        float64 `yaml:"threshold"`
	Polarity         string  `yaml:"polarity"` // "below": on line when reading <= threshold; "above": >= threshold
	DriftFraction    float64 `yaml:"drift_fraction"`
	FarDriftFraction float64 `yaml:"far_drift_fraction"`
	OffLinePolicy    string  `yaml:"off_line_policy"` // "straight" or "spin"
}

// WallConfig tunes the square-up behaviour against a wall.
type WallConfig struct {
	BoostPercent float64 `yaml:"boost_percent"` // 0 with cut_percent 0 = no square-up
	CutPercent   float64 `yaml:"cut_percent"`
	TimeoutMs    int     `yaml:"timeout_ms"` // 0 = no timeout
}

// MotorPins describes an H-bridge channel (BCM numbering).
type MotorPins struct {
	PWMPin   int  `yaml:"pwm_pin"`
	DirPin   int  `yaml:"dir_pin"`
	Inverted bool `yaml:"inverted"`
}

// HardwareConfig holds pin assignments.
type HardwareConfig struct {
	LeftMotor       MotorPins `yaml:"left_motor"`
	RightMotor      MotorPins `yaml:"right_motor"`
	PWMFrequencyHz  int       `yaml:"pwm_frequency_hz"`
	LeftEncoderPin  int       `yaml:"left_encoder_pin"`
	RightEncoderPin int       `yaml:"right_encoder_pin"`
	LeftBumperPin   int       `yaml:"left_bumper_pin"`
	RightBumperPin  int       `yaml:"right_bumper_pin"`
	LineLeftChan    int       `yaml:"line_left_channel"` // MCP3008 channels
	LineMidChan     int       `yaml:"line_mid_channel"`
	LineRightChan   int       `yaml:"line_right_channel"`
	ArmPin          int       `yaml:"arm_pin"` // 0 = no arm
	ArmMinPulseUs   int       `yaml:"arm_min_pulse_us"`
	ArmMaxPulseUs   int       `yaml:"arm_max_pulse_us"`
	Mock            bool      `yaml:"mock"` // simulated hardware (dev/test)
}

// PositionConfig describes the serial link to the absolute position service.
type PositionConfig struct {
	Device  string `yaml:"device"`
	Baud    int    `yaml:"baud"`
	StaleMs int    `yaml:"stale_ms"`
}

// Location is a named course point.
type Location struct {
	X float64 `yaml:"x" json:"x"`
	Y float64 `yaml:"y" json:"y"`
}

// StepConfig is one mission step. Unused fields are ignored per op.
type StepConfig struct {
	Op        string  `yaml:"op"`
	Power     float64 `yaml:"power,omitempty"`
	Inches    float64 `yaml:"inches,omitempty"`
	Degrees   float64 `yaml:"degrees,omitempty"`
	Direction string  `yaml:"direction,omitempty"` // forward|backward|left|right
	Heading   float64 `yaml:"heading,omitempty"`
	At        string  `yaml:"at,omitempty"` // location name
	X         float64 `yaml:"x,omitempty"`
	Y         float64 `yaml:"y,omitempty"`
	Strategy  string  `yaml:"strategy,omitempty"` // axis|forward|backward
	TimeoutMs int     `yaml:"timeout_ms,omitempty"`
	Ms        int     `yaml:"ms,omitempty"`

	// follow_line end conditions
	UntilWall         bool `yaml:"until_wall,omitempty"`
	StopOnContactLoss bool `yaml:"stop_on_contact_loss,omitempty"`
	HoldWall          bool `yaml:"hold_wall,omitempty"`
}

// StepOps lists the operations a mission step may name.
var StepOps = []string{"drive", "turn", "face", "move_to", "wall", "follow_line", "arm", "pause", "wiggle"}

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	DebugLevel      int `yaml:"debug_level"`       // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	TickMs          int `yaml:"tick_ms"`           // control loop period
	SafetyTimeoutMs int `yaml:"safety_timeout_ms"` // applied to primitives without their own timeout. 0 = none
}

// Config aggregates all application configuration.
type Config struct {
	Drive     DriveConfig             `yaml:"drive"`
	Heading   HeadingConfig           `yaml:"heading"`
	Navigator NavigatorConfig         `yaml:"navigator"`
	Line      LineConfig              `yaml:"line"`
	Wall      WallConfig              `yaml:"wall"`
	Hardware  HardwareConfig          `yaml:"hardware"`
	Position  PositionConfig          `yaml:"position"`
	Locations map[string]Location     `yaml:"locations"`
	Missions  map[string][]StepConfig `yaml:"missions"`
	Defaults  DefaultsConfig          `yaml:"defaults"`
}

// ValidateConfigPath accepts only *.yaml files whose parent directory is "configs".
func ValidateConfigPath(path string) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if strings.Contains(filepath.ToSlash(path), "..") {
		return fmt.Errorf("config path %q must not contain \"..\"", path)
	}
	clean := filepath.Clean(path)
	if filepath.Ext(clean) != ".yaml" {
		return fmt.Errorf("config path %q must end in .yaml", path)
	}
	if filepath.Base(filepath.Dir(clean)) != "configs" {
		return fmt.Errorf("config path %q must be inside a configs/ directory", path)
	}
	return nil
}

// Load reads a YAML file and returns the configuration.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxConfigFileBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if len(data) > MaxConfigFileBytes {
		return nil, fmt.Errorf("config file exceeds %d bytes", MaxConfigFileBytes)
	}

	return Parse(data)
}

// Parse unmarshals, defaults and validates a YAML document.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}
	var set explicitKeys
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}
	cfg.applyDefaults(set)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// explicitKeys records tunables for which 0 is a valid setting, so only
// an absent key takes the default.
type explicitKeys struct {
	Drive struct {
		ProportionalGain *float64 `yaml:"proportional_gain"`
	} `yaml:"drive"`
	Wall struct {
		BoostPercent *float64 `yaml:"boost_percent"`
		CutPercent   *float64 `yaml:"cut_percent"`
	} `yaml:"wall"`
}

func (c *Config) applyDefaults(set explicitKeys) {
	d := &c.Drive
	if d.CountsPerInch <= 0 {
		d.CountsPerInch = 33.74
	}
	if d.LeftCountsPerDegree <= 0 {
		d.LeftCountsPerDegree = 1.99
	}
	if d.RightCountsPerDegree <= 0 {
		d.RightCountsPerDegree = 1.99
	}
	if set.Drive.ProportionalGain == nil {
		d.ProportionalGain = 0.07
	}

	h := &c.Heading
	if h.ToleranceDeg <= 0 {
		h.ToleranceDeg = 0.7
	}
	if h.PulseDeg <= 0 {
		h.PulseDeg = 0.5
	}
	if h.PulsePower <= 0 {
		h.PulsePower = 10
	}
	if h.SettleMs <= 0 {
		h.SettleMs = 100
	}
	if h.MaxDropouts <= 0 {
		h.MaxDropouts = 20
	}
	if h.CoarsePower <= 0 {
		h.CoarsePower = 20
	}

	n := &c.Navigator
	if n.Strategy == "" {
		n.Strategy = "axis"
	}
	if n.AxisTolerance <= 0 {
		n.AxisTolerance = 1
	}
	if n.NudgeInches <= 0 {
		n.NudgeInches = 0.5
	}
	if n.NudgePower <= 0 {
		n.NudgePower = 20
	}
	if n.DrivePower <= 0 {
		n.DrivePower = 20
	}
	if n.BearingTable == "" {
		n.BearingTable = "standard"
	}
	if n.LockPollMs <= 0 {
		n.LockPollMs = 50
	}

	l := &c.Line
	if l.Threshold == 0 {
		l.Threshold = 2.9
	}
	if l.Polarity == "" {
		l.Polarity = "below"
	}
	if l.DriftFraction == 0 {
		l.DriftFraction = 0.75
	}
	if l.FarDriftFraction == 0 {
		l.FarDriftFraction = 0.5
	}
	if l.OffLinePolicy == "" {
		l.OffLinePolicy = "straight"
	}

	w := &c.Wall
	if set.Wall.BoostPercent == nil {
		w.BoostPercent = 5
	}
	if set.Wall.CutPercent == nil {
		w.CutPercent = 10
	}

	hw := &c.Hardware
	if hw.PWMFrequencyHz <= 0 {
		hw.PWMFrequencyHz = 64000
	}
	if hw.ArmMinPulseUs <= 0 {
		hw.ArmMinPulseUs = 818
	}
	if hw.ArmMaxPulseUs <= 0 {
		hw.ArmMaxPulseUs = 2355
	}

	p := &c.Position
	if p.Baud <= 0 {
		p.Baud = 115200
	}
	if p.StaleMs <= 0 {
		p.StaleMs = 500
	}

	if c.Defaults.TickMs <= 0 {
		c.Defaults.TickMs = 10
	}
}

// Validate checks value ranges and cross references.
func (c *Config) Validate() error {
	if c.Drive.ProportionalGain < 0 {
		return fmt.Errorf("drive.proportional_gain must be >= 0, got %.3f", c.Drive.ProportionalGain)
	}
	if c.Drive.BrakePercent < 0 || c.Drive.BrakePercent > 100 {
		return fmt.Errorf("drive.brake_percent must be between 0 and 100, got %.2f", c.Drive.BrakePercent)
	}
	if c.Heading.ToleranceDeg >= 180 {
		return fmt.Errorf("heading.tolerance_deg must be < 180, got %.2f", c.Heading.ToleranceDeg)
	}
	switch c.Navigator.Strategy {
	case "axis", "direct":
	default:
		return fmt.Errorf("navigator.strategy must be \"axis\" or \"direct\", got %q", c.Navigator.Strategy)
	}
	switch c.Navigator.BearingTable {
	case "standard", "mirrored":
	default:
		return fmt.Errorf("navigator.bearing_table must be \"standard\" or \"mirrored\", got %q", c.Navigator.BearingTable)
	}
	switch c.Line.Polarity {
	case "below", "above":
	default:
		return fmt.Errorf("line.polarity must be \"below\" or \"above\", got %q", c.Line.Polarity)
	}
	switch c.Line.OffLinePolicy {
	case "straight", "spin":
	default:
		return fmt.Errorf("line.off_line_policy must be \"straight\" or \"spin\", got %q", c.Line.OffLinePolicy)
	}
	if c.Line.DriftFraction <= 0 || c.Line.DriftFraction > 1 {
		return fmt.Errorf("line.drift_fraction must be in (0, 1], got %.2f", c.Line.DriftFraction)
	}
	if c.Line.FarDriftFraction <= 0 || c.Line.FarDriftFraction > c.Line.DriftFraction {
		return fmt.Errorf("line.far_drift_fraction must be in (0, drift_fraction], got %.2f", c.Line.FarDriftFraction)
	}
	if !c.Hardware.Mock && c.Position.Device == "" {
		return errors.New("position.device is required unless hardware.mock is set")
	}
	if c.Defaults.DebugLevel < 0 || c.Defaults.DebugLevel > 4 {
		return fmt.Errorf("defaults.debug_level must be between 0 and 4, got %d", c.Defaults.DebugLevel)
	}
	for name, steps := range c.Missions {
		for i, s := range steps {
			if s.Op == "" {
				return fmt.Errorf("mission %q step %d: op is required", name, i+1)
			}
			if !slices.Contains(StepOps, s.Op) {
				return fmt.Errorf("mission %q step %d: unknown op %q", name, i+1, s.Op)
			}
			if s.At != "" {
				if _, ok := c.Locations[s.At]; !ok {
					return fmt.Errorf("mission %q step %d: unknown location %q", name, i+1, s.At)
				}
			}
		}
	}
	return nil
}

// Tick returns the control loop period.
func (c *Config) Tick() time.Duration {
	return time.Duration(c.Defaults.TickMs) * time.Millisecond
}

// SafetyTimeout returns the universal primitive timeout (0 = none).
func (c *Config) SafetyTimeout() time.Duration {
	return time.Duration(c.Defaults.SafetyTimeoutMs) * time.Millisecond
}

// Settle returns the pause after each heading pulse.
func (c *Config) Settle() time.Duration {
	return time.Duration(c.Heading.SettleMs) * time.Millisecond
}

// HeadingTimeout returns the overall heading controller timeout (0 = none).
func (c *Config) HeadingTimeout() time.Duration {
	return time.Duration(c.Heading.TimeoutMs) * time.Millisecond
}

// LockTimeout returns how long the navigator waits for a position lock (0 = forever).
func (c *Config) LockTimeout() time.Duration {
	return time.Duration(c.Navigator.LockTimeoutMs) * time.Millisecond
}

// LockPoll returns the pause between position lock checks.
func (c *Config) LockPoll() time.Duration {
	return time.Duration(c.Navigator.LockPollMs) * time.Millisecond
}

// Brake returns the reverse pulse duration at the end of a drive.
func (c *Config) Brake() time.Duration {
	return time.Duration(c.Drive.BrakeMs) * time.Millisecond
}

// WallTimeout returns the drive-to-wall timeout (0 = none).
func (c *Config) WallTimeout() time.Duration {
	return time.Duration(c.Wall.TimeoutMs) * time.Millisecond
}

// PositionStale returns the age after which a position reading is unavailable.
func (c *Config) PositionStale() time.Duration {
	return time.Duration(c.Position.StaleMs) * time.Millisecond
}

// MissionNames returns the configured mission names, sorted.
func (c *Config) MissionNames() []string {
	names := make([]string, 0, len(c.Missions))
	for name := range c.Missions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LocationNames returns the configured location names, sorted.
func (c *Config) LocationNames() []string {
	names := make([]string, 0, len(c.Locations))
	for name := range c.Locations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
