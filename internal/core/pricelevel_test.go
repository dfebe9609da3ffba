package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerlabs/matchbook/internal/domain"
)

func levelOrder(id, remaining string) *domain.Order {
	return &domain.Order{
		ID:        id,
		Amount:    d(remaining),
		Remaining: d(remaining),
	}
}

func TestPriceLevel_AddKeepsArrivalOrder(t *testing.T) {
	lvl := NewPriceLevel(d("0.50"))
	assert.Nil(t, lvl.Front())
	assertDec(t, "0", lvl.Total())

	lvl.Add(levelOrder("a", "10"))
	lvl.Add(levelOrder("b", "5"))
	lvl.Add(levelOrder("c", "7"))

	assert.Equal(t, 3, lvl.Len())
	assertDec(t, "22", lvl.Total())
	assert.Equal(t, "a", lvl.Front().ID)

	ids := make([]string, 0, 3)
	for _, o := range lvl.Orders() {
		ids = append(ids, o.ID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestPriceLevel_Remove(t *testing.T) {
	lvl := NewPriceLevel(d("0.50"))
	lvl.Add(levelOrder("a", "10"))
	lvl.Add(levelOrder("b", "5"))

	empty, err := lvl.Remove("a")
	require.NoError(t, err)
	assert.False(t, empty)
	assertDec(t, "5", lvl.Total())
	assert.Equal(t, "b", lvl.Front().ID)

	// Removing the last order reports the level as empty.
	empty, err = lvl.Remove("b")
	require.NoError(t, err)
	assert.True(t, empty)
	assertDec(t, "0", lvl.Total())

	_, err = lvl.Remove("b")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestPriceLevel_RemoveCountsRemainingNotAmount(t *testing.T) {
	lvl := NewPriceLevel(d("0.50"))
	o := levelOrder("a", "10")
	lvl.Add(o)
	lvl.Add(levelOrder("b", "5"))

	// A partial fill reduces both the order and the tally.
	o.Remaining = d("4")
	lvl.Reduce(d("6"))
	assertDec(t, "9", lvl.Total())

	// Removal subtracts what is left, not the original amount.
	empty, err := lvl.Remove("a")
	require.NoError(t, err)
	assert.False(t, empty)
	assertDec(t, "5", lvl.Total())
}
