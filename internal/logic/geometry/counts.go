package geometry

import (
	"github.com/cjeanneret/CourseNav/internal/config"
)

// CountsCalculator converts distances and angles to encoder counts.
type CountsCalculator struct {
	perInch        float64
	leftPerDegree  float64
	rightPerDegree float64
}

// NewCountsCalculator creates a count calculator from configuration.
func NewCountsCalculator(cfg *config.Config) *CountsCalculator {
	return &CountsCalculator{
		perInch:        cfg.Drive.CountsPerInch,
		leftPerDegree:  cfg.Drive.LeftCountsPerDegree,
		rightPerDegree: cfg.Drive.RightCountsPerDegree,
	}
}

// CountsFromInches converts a straight-line distance to an average wheel count.
func (c *CountsCalculator) CountsFromInches(inches float64) float64 {
	return inches * c.perInch
}

// InchesFromCounts converts an average wheel count back to inches.
func (c *CountsCalculator) InchesFromCounts(counts float64) float64 {
	if c.perInch == 0 {
		return 0
	}
	return counts / c.perInch
}

// CountsFromDegrees converts a pivot angle to an average wheel count.
// Each turn direction has its own calibration.
func (c *CountsCalculator) CountsFromDegrees(degrees float64, dir Side) float64 {
	if dir == Right {
		return degrees * c.rightPerDegree
	}
	return degrees * c.leftPerDegree
}
