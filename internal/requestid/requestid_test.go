package requestid

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, FromContext(ctx))
	assert.Equal(t, ctx, WithContext(ctx, ""))

	id := New()
	assert.Equal(t, id, FromContext(WithContext(ctx, id)))
}
