package comanda

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to Status }{
		{StatusOpen, StatusClosed},
		{StatusOpen, StatusPaid},
		{StatusOpen, StatusCancelled},
		{StatusClosed, StatusPaid},
	}
	for _, tc := range allowed {
		assert.True(t, CanTransition(tc.from, tc.to), "%s -> %s should be allowed", tc.from, tc.to)
	}

	denied := []struct{ from, to Status }{
		{StatusClosed, StatusOpen},
		{StatusClosed, StatusCancelled},
		{StatusPaid, StatusOpen},
		{StatusPaid, StatusClosed},
		{StatusPaid, StatusCancelled},
		{StatusCancelled, StatusOpen},
		{StatusCancelled, StatusPaid},
		{StatusOpen, StatusOpen},
	}
	for _, tc := range denied {
		assert.False(t, CanTransition(tc.from, tc.to), "%s -> %s should be denied", tc.from, tc.to)
	}
}

func TestTerminal(t *testing.T) {
	assert.False(t, StatusOpen.Terminal())
	assert.False(t, StatusClosed.Terminal())
	assert.True(t, StatusPaid.Terminal())
	assert.True(t, StatusCancelled.Terminal())
}

func TestStatusValid(t *testing.T) {
	assert.True(t, StatusOpen.Valid())
	assert.False(t, Status("DRAFT").Valid())
}
