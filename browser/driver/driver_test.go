package driver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"tbreport/config"
)

func TestOpenUnknownDriver(t *testing.T) {
	s, err := Open(context.Background(), config.BrowserConfig{Driver: "selenium"}, nil)
	assert.ErrorIs(t, err, ErrUnknownDriver)
	assert.Nil(t, s)
}
