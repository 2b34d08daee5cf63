package textutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFold(t *testing.T) {
	require.Equal(t, "продажа usdt/rub", Fold("  Продажа   USDT/RUB \n"))
	require.Equal(t, "a b c", Fold("A\tB\n\nC"))
	require.Equal(t, "", Fold("  \n\t "))
}

func TestContainsAny(t *testing.T) {
	keywords := []string{"продажа", "sell"}
	require.True(t, ContainsAny("продажа usdt/rub", keywords))
	require.True(t, ContainsAny("limit sell order", keywords))
	require.False(t, ContainsAny("покупка usdt/rub", keywords))
	require.False(t, ContainsAny("anything", nil))
}
