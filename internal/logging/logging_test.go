package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		for _, level := range []string{"debug", "info", "warn", "error"} {
			logger, err := New(level, format)
			require.NoError(t, err, "%s/%s", level, format)
			assert.NotNil(t, logger)
		}
	}
}

func TestNewRejectsBadInput(t *testing.T) {
	_, err := New("trace", "json")
	assert.Error(t, err)

	_, err = New("info", "xml")
	assert.Error(t, err)
}
