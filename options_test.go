package eventengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEngineOptions_Defaults(t *testing.T) {
	o, err := NewEngineOptions()
	require.NoError(t, err)
	assert.Equal(t, defaultCapacity, o.Capacity)
	assert.Equal(t, defaultMaxSpin, o.MaxSpin)
	assert.Equal(t, defaultTimeoutS, o.TimeoutS)
	assert.NotNil(t, o.Logger)
}

func TestNewEngineOptions_RejectsZeroCapacity(t *testing.T) {
	_, err := NewEngineOptions(WithCapacity(0))
	assert.Error(t, err)
}

func TestNewEngineOptions_RejectsNegativeMaxSpin(t *testing.T) {
	_, err := NewEngineOptions(WithMaxSpin(-1))
	assert.Error(t, err)
}

func TestNewEngineOptions_AppliesOverrides(t *testing.T) {
	o, err := NewEngineOptions(WithCapacity(10), WithMaxSpin(3), WithTimeoutS(2.5))
	require.NoError(t, err)
	assert.Equal(t, 10, o.Capacity)
	assert.Equal(t, 3, o.MaxSpin)
	assert.Equal(t, 2.5, o.TimeoutS)
}
