package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerificationError(t *testing.T) {
	// A stupid test just to keep code coverage
	s := "test"
	err := NewVerificationError(KindSCT, s)
	assert.Equal(t, s, err.Error())
	assert.Equal(t, KindSCT, err.Kind())
}
