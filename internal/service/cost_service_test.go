package service

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestComputeVariance(t *testing.T) {
	line := computeVariance(decimal.NewFromInt(1200), decimal.NewFromInt(1000))
	assert.True(t, line.Variance.Equal(decimal.NewFromInt(200)))
	assert.True(t, line.VariancePct.Equal(decimal.NewFromInt(20)), "got %s", line.VariancePct)

	under := computeVariance(decimal.NewFromInt(750), decimal.NewFromInt(1000))
	assert.True(t, under.Variance.Equal(decimal.NewFromInt(-250)))
	assert.True(t, under.VariancePct.Equal(decimal.NewFromInt(-25)))
}

func TestComputeVarianceRoundsPercent(t *testing.T) {
	line := computeVariance(decimal.NewFromInt(100), decimal.NewFromInt(300))
	// -200/300 = -66.666..., rounded to two places.
	assert.Equal(t, "-66.67", line.VariancePct.StringFixed(2))
}

func TestComputeVarianceZeroBudget(t *testing.T) {
	line := computeVariance(decimal.NewFromInt(500), decimal.Zero)
	assert.True(t, line.Variance.Equal(decimal.NewFromInt(500)))
	assert.True(t, line.VariancePct.IsZero(), "no percentage against a zero budget")
}
