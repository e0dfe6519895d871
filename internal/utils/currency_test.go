package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "0.00", FormatAmount(0))
	assert.Equal(t, "999.00", FormatAmount(999))
	assert.Equal(t, "1,000.00", FormatAmount(1000))
	assert.Equal(t, "1,234,567.50", FormatAmount(1234567.5))
	assert.Equal(t, "-2,500.75", FormatAmount(-2500.75))
}

func TestFormatCurrency(t *testing.T) {
	assert.Equal(t, "USD 1,500.00", FormatCurrency("USD", 1500))
	assert.Equal(t, "1,500.00", FormatCurrency("", 1500))
}
