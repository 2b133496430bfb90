package linefollow

import "fmt"

// State is the position of the line relative to the sensor array.
// LEFT and RIGHT name the side the robot has drifted to.
type State int

const (
	Center State = iota
	Left
	FarLeft
	Right
	FarRight
	OffLine
)

func (s State) String() string {
	switch s {
	case Center:
		return "CENTER"
	case Left:
		return "LEFT"
	case FarLeft:
		return "FAR_LEFT"
	case Right:
		return "RIGHT"
	case FarRight:
		return "FAR_RIGHT"
	case OffLine:
		return "OFF_LINE"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Polarity tells which side of the threshold means "over the line".
type Polarity int

const (
	// Below: a reading at or under the threshold is on the line (dark line on light floor).
	Below Polarity = iota
	// Above: a reading at or over the threshold is on the line.
	Above
)

// ParsePolarity maps "below"/"above".
func ParsePolarity(s string) (Polarity, error) {
	switch s {
	case "", "below":
		return Below, nil
	case "above":
		return Above, nil
	}
	return Below, fmt.Errorf("unknown line polarity %q", s)
}

// OffLinePolicy is the command used when the line is not recognised.
type OffLinePolicy int

const (
	// Straight keeps both wheels at the base speed.
	Straight OffLinePolicy = iota
	// Spin reverses the right wheel to search in place.
	Spin
)

// ParseOffLinePolicy maps "straight"/"spin".
func ParseOffLinePolicy(s string) (OffLinePolicy, error) {
	switch s {
	case "", "straight":
		return Straight, nil
	case "spin":
		return Spin, nil
	}
	return Straight, fmt.Errorf("unknown off-line policy %q", s)
}

// Classifier turns three sensor readings into a State.
type Classifier struct {
	Threshold float64
	Polarity  Polarity
}

func (c Classifier) on(v float64) bool {
	if c.Polarity == Above {
		return v >= c.Threshold
	}
	return v <= c.Threshold
}

// Classify is a pure function of the current readings.
func (c Classifier) Classify(left, mid, right float64) State {
	l, m, r := c.on(left), c.on(mid), c.on(right)
	switch {
	case m && !l && !r:
		return Center
	case m && r && !l:
		return Left
	case !m && r && !l:
		return FarLeft
	case m && l && !r:
		return Right
	case !m && l && !r:
		return FarRight
	}
	return OffLine
}

// Steering maps states to wheel commands around a base speed.
type Steering struct {
	Drift    float64 // fraction of speed given to the wheel on the drift side
	FarDrift float64 // same, when the line has reached the outer sensor
	OffLine  OffLinePolicy
}

// Command returns the left and right wheel percent for state.
func (s Steering) Command(state State, speed float64) (left, right float64) {
	switch state {
	case Left:
		return speed, s.Drift * speed
	case FarLeft:
		return speed, s.FarDrift * speed
	case Right:
		return s.Drift * speed, speed
	case FarRight:
		return s.FarDrift * speed, speed
	case OffLine:
		if s.OffLine == Spin {
			return speed, -speed
		}
	}
	return speed, speed
}
