package roddriver

import (
	"testing"

	"github.com/go-rod/rod"
	"github.com/stretchr/testify/assert"
)

func TestCloseAttachedLeavesBrowser(t *testing.T) {
	// the browser was never connected; closing it would fail
	s := &Session{browser: rod.New(), attached: true}
	assert.NotPanics(t, func() {
		assert.NoError(t, s.Close())
	})
}

func TestCloseWithoutBrowser(t *testing.T) {
	s := &Session{}
	assert.NoError(t, s.Close())
}
