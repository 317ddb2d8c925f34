package teardown

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunAllStepsSucceed(t *testing.T) {
	var order []string
	steps := []Step{
		{Label: "first", Run: func() error { order = append(order, "first"); return nil }},
		{Label: "second", Run: func() error { order = append(order, "second"); return nil }},
	}

	report := Run(nil, steps)

	assert.True(t, report.OK())
	require.NoError(t, report.Err())
	assert.Equal(t, []string{"first", "second"}, report.Attempted)
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestRunIsolatesFailures(t *testing.T) {
	var ran []string
	steps := []Step{
		{Label: "A", Run: func() error { ran = append(ran, "A"); return nil }},
		{Label: "B", Run: func() error { ran = append(ran, "B"); return errors.New("network error") }},
		{Label: "C", Run: func() error { ran = append(ran, "C"); return nil }},
	}

	report := Run(nil, steps)

	// B's failure never stops A's or C's side effects.
	assert.Equal(t, []string{"A", "B", "C"}, ran)
	assert.Equal(t, []string{"A", "B", "C"}, report.Attempted)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "B", report.Failures[0].Label)
	assert.Equal(t, "network error", report.Failures[0].Message)

	err := report.Err()
	require.Error(t, err)
	assert.EqualError(t, err, "completed with 1 error(s)")
}

func TestRunRecordsMultipleFailuresInOrder(t *testing.T) {
	steps := []Step{
		{Label: "one", Run: func() error { return errors.New("first failure") }},
		{Label: "two", Run: func() error { return nil }},
		{Label: "three", Run: func() error { return errors.New("second failure") }},
	}

	report := Run(nil, steps)

	require.Len(t, report.Failures, 2)
	assert.Equal(t, "one", report.Failures[0].Label)
	assert.Equal(t, "three", report.Failures[1].Label)
	assert.EqualError(t, report.Err(), "completed with 2 error(s)")
}

func TestRunEmptySteps(t *testing.T) {
	report := Run(nil, nil)

	assert.True(t, report.OK())
	assert.NoError(t, report.Err())
	assert.Empty(t, report.Attempted)
}
