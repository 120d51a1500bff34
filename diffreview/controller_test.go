package diffreview

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestControllerSingleSession(t *testing.T) {
	c := NewController()
	assert.False(t, c.Active())

	s, err := c.Open("old\n", "new\n", nil, nil)
	require.NoError(t, err)
	assert.True(t, c.Active())
	assert.Equal(t, "old\n", s.Original())
	assert.Equal(t, "new\n", s.Proposed())
	assert.NotEmpty(t, s.Rows())

	// A second open while unresolved is rejected.
	_, err = c.Open("a", "b", nil, nil)
	assert.ErrorIs(t, err, ErrReviewInProgress)

	s.Reject()
	assert.False(t, c.Active())

	// Resolved sessions free the controller.
	_, err = c.Open("a", "b", nil, nil)
	require.NoError(t, err)
}

func TestSessionAcceptFiresCallbackOnce(t *testing.T) {
	c := NewController()

	var accepted, rejected int
	s, err := c.Open("old", "new",
		func() { accepted++ },
		func() { rejected++ },
	)
	require.NoError(t, err)

	s.Accept()
	s.Accept()
	s.Reject()

	assert.Equal(t, 1, accepted)
	assert.Equal(t, 0, rejected)
}

func TestSessionRejectFiresCallbackOnce(t *testing.T) {
	c := NewController()

	var accepted, rejected int
	s, err := c.Open("old", "new",
		func() { accepted++ },
		func() { rejected++ },
	)
	require.NoError(t, err)

	s.Reject()
	s.Reject()
	s.Accept()

	assert.Equal(t, 0, accepted)
	assert.Equal(t, 1, rejected)
}

func TestCallbackMayOpenFollowUpSession(t *testing.T) {
	c := NewController()

	var opened bool
	s, err := c.Open("old", "new", func() {
		// The accept callback runs outside the controller lock, so a
		// follow-up review can start immediately.
		_, err := c.Open("x", "y", nil, nil)
		opened = err == nil
	}, nil)
	require.NoError(t, err)

	s.Accept()
	assert.True(t, opened)
	assert.True(t, c.Active())
}

func TestNilCallbacksAreSafe(t *testing.T) {
	c := NewController()

	s, err := c.Open("old", "new", nil, nil)
	require.NoError(t, err)
	s.Accept()

	s, err = c.Open("old", "new", nil, nil)
	require.NoError(t, err)
	s.Reject()

	assert.False(t, c.Active())
}
