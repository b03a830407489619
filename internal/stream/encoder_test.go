package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeFrame_RejectsShortFrame(t *testing.T) {
	e := &Encoder{}
	err := e.EncodeFrame(make([]byte, 3), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid PCM frame size")
	assert.Contains(t, err.Error(), "got 3")
}
