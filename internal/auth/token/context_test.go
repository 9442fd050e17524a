package token

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextRoundTrip(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := NewContext(context.Background(), &AccessClaims{AccountID: "42"})
	c, ok := FromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "42", c.AccountID)

	_, ok = FromContext(NewContext(context.Background(), nil))
	assert.False(t, ok)
}
