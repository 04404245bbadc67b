package integrations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func TestNewClientDefaultsNonPositiveRateToFive(t *testing.T) {
	c := NewClient("token", 0)
	assert.Equal(t, rate.Limit(5), c.rateLimiter.Limit())

	c = NewClient("token", -3)
	assert.Equal(t, rate.Limit(5), c.rateLimiter.Limit())
}

func TestNewClientHonorsPositiveRate(t *testing.T) {
	c := NewClient("token", 20)
	assert.Equal(t, rate.Limit(20), c.rateLimiter.Limit())
}
