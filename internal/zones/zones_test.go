package zones

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AngelCh415/buyer-rollup/internal/models"
)

func f(v float64) *float64 { return &v }

func TestClassify(t *testing.T) {
	th := models.ZoneThresholds{Article: "A-1", Red: f(5), Pink: f(8), Gold: f(12), Green: f(20)}

	cases := []struct {
		cpl  float64
		want Zone
	}{
		{6, Pink},
		{3, Red},
		{25, Green},
		{20, Green},
		{5, Pink},
		{11.99, Gold},
		{12, Green},
	}
	for _, c := range cases {
		z, ok := Classify(th, c.cpl)
		assert.True(t, ok, "cpl %v", c.cpl)
		assert.Equal(t, c.want, z, "cpl %v", c.cpl)
	}
}

func TestClassifyPartialTiers(t *testing.T) {
	th := models.ZoneThresholds{Pink: f(8), Green: f(20)}

	z, ok := Classify(th, 2)
	assert.True(t, ok)
	assert.Equal(t, Pink, z)

	z, _ = Classify(th, 9)
	assert.Equal(t, Green, z)

	z, _ = Classify(models.ZoneThresholds{Gold: f(10)}, 50)
	assert.Equal(t, Gold, z)
}

func TestClassifyNone(t *testing.T) {
	th := models.ZoneThresholds{Red: f(5)}

	for _, cpl := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		_, ok := Classify(th, cpl)
		assert.False(t, ok, "cpl %v", cpl)
	}
	_, ok := Classify(models.ZoneThresholds{Article: "empty"}, 4)
	assert.False(t, ok)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(models.ZoneThresholds{Red: f(5), Pink: f(8), Gold: f(12), Green: f(20)}))
	assert.NoError(t, Validate(models.ZoneThresholds{Red: f(5), Green: f(5)}))
	assert.NoError(t, Validate(models.ZoneThresholds{}))

	err := Validate(models.ZoneThresholds{Article: "X", Red: f(9), Pink: f(8)})
	assert.True(t, errors.Is(err, ErrUnordered))
	assert.Contains(t, err.Error(), `"X"`)

	assert.ErrorIs(t, Validate(models.ZoneThresholds{Gold: f(math.NaN())}), ErrUnordered)
	assert.ErrorIs(t, Validate(models.ZoneThresholds{Red: f(-1)}), ErrUnordered)
}
