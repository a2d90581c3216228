package broker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSideOpposite(t *testing.T) {
	assert.Equal(t, Sell, Buy.Opposite())
	assert.Equal(t, Buy, Sell.Opposite())
}

func TestFormatBaseSize(t *testing.T) {
	assert.Equal(t, "0.12345679", FormatBaseSize(0.123456789))
	assert.Equal(t, "1", FormatBaseSize(1.0))
	assert.Equal(t, "0.001", FormatBaseSize(0.001))
}

func TestFormatLimitPrice(t *testing.T) {
	assert.Equal(t, "50000.12", FormatLimitPrice(50000.123))
	assert.Equal(t, "3000", FormatLimitPrice(3000.0))
}

func TestRoundBaseSize(t *testing.T) {
	assert.InDelta(t, 0.12345679, RoundBaseSize(0.123456789), 1e-12)
}
