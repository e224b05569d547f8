package helper

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMinAddress(t *testing.T) {
	assert.Equal(t, "fe80::1", MinAddress("fe80::1", "fe80::2"))
	assert.Equal(t, "fe80::1", MinAddress("fe80::2", "fe80::1"))
	assert.Equal(t, "fe80::1", MinAddress("fe80::1", ""))
	assert.Equal(t, "fe80::1", MinAddress("", "fe80::1"))
}

func TestElectionValueRange(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for i := 0; i < 1000; i++ {
		v := ElectionValue(r)
		assert.GreaterOrEqual(t, v, uint16(1))
		assert.LessOrEqual(t, v, uint16(255))
	}
}
