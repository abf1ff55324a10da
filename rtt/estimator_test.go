package rtt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestJacobsonEstimatorConvergesTowardSteadyRTT(t *testing.T) {
	e := NewJacobsonEstimator(InitialRTO(5*time.Second), MinRTO(0))
	steady := 50 * time.Millisecond
	for i := 0; i < 50; i++ {
		e.AddMeasurement(steady, 1)
	}
	assert.InDelta(t, float64(steady), float64(e.RTO()), float64(20*time.Millisecond))
}

func TestJacobsonEstimatorRespectsMinAndMax(t *testing.T) {
	e := NewJacobsonEstimator(MinRTO(500*time.Millisecond), MaxRTO(2*time.Second))
	e.AddMeasurement(time.Microsecond, 1)
	assert.GreaterOrEqual(t, e.RTO(), 500*time.Millisecond)

	e2 := NewJacobsonEstimator(MinRTO(0), MaxRTO(2 * time.Second))
	for i := 0; i < 10; i++ {
		e2.AddMeasurement(10*time.Second, 1)
	}
	assert.LessOrEqual(t, e2.RTO(), 2*time.Second)
}

func TestBackoffRTODoublesAndClamps(t *testing.T) {
	e := NewJacobsonEstimator(MaxRTO(4 * time.Second))
	got := e.BackoffRTO(1 * time.Second)
	assert.Equal(t, 2*time.Second, got)
	got = e.BackoffRTO(got)
	assert.Equal(t, 4*time.Second, got)
	got = e.BackoffRTO(got)
	assert.Equal(t, 4*time.Second, got, "must clamp at MaxRTO")
}
