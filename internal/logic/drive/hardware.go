package drive

import "time"

// Motor is one wheel drive taking a signed percent command.
type Motor interface {
	SetPercent(percent float64) error
}

// Encoder is a resettable wheel count accumulator.
type Encoder interface {
	Count() int64
	Reset()
}

// Contacts reads the front bumpers.
type Contacts interface {
	Contacts() (left, right bool, err error)
}

// Clock paces the control loops. clock.Clock satisfies it.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// Hardware is the set of devices a motion primitive owns while it runs.
type Hardware struct {
	LeftMotor    Motor
	RightMotor   Motor
	LeftEncoder  Encoder
	RightEncoder Encoder
	Bumpers      Contacts
	Clock        Clock
}
