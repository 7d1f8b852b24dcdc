package symbol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "AAPL", Normalize("  aapl "))
	assert.Equal(t, []string{"AAPL", "BTCUSD"}, NormalizeList([]string{"aapl", " ", "btcusd", "AAPL"}))
	assert.Nil(t, NormalizeList(nil))
}
