package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatValueFactor(t *testing.T) {
	assert.Equal(t, "19.300 Ah", FormatValueFactor(19.3, "Ah"))
	assert.Equal(t, "0.000 V", FormatValueFactor(0, "V"))
	assert.Equal(t, "5.000 mohm", FormatValueFactor(5e-3, "ohm"))
	assert.Equal(t, "12.000 uA", FormatValueFactor(12e-6, "A"))
	assert.Equal(t, "1.000e-09 s", FormatValueFactor(1e-9, "s"))
}

func TestFormatSeconds(t *testing.T) {
	assert.Equal(t, "12.5 s", FormatSeconds(12.5))
	assert.Equal(t, "2.0 min", FormatSeconds(120))
	assert.Equal(t, "1.04 h", FormatSeconds(3742))
}
