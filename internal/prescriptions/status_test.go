package prescriptions

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSource(t *testing.T) {
	for to, want := range map[Status]Status{
		StatusApproved:  StatusPending,
		StatusRejected:  StatusPending,
		StatusDispensed: StatusApproved,
	} {
		got, ok := source(to)
		assert.True(t, ok, to)
		assert.Equal(t, want, got, to)
		assert.True(t, CanTransition(got, to))
	}

	_, ok := source(StatusPending)
	assert.False(t, ok)
}
