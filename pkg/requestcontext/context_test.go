package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	id "neighborly/pkg/domain"
)

func TestAccessors(t *testing.T) {
	ctx := context.Background()

	t.Run("zero values when unset", func(t *testing.T) {
		assert.True(t, UserID(ctx).IsNil())
		assert.Empty(t, RequestID(ctx))
		assert.WithinDuration(t, time.Now(), Now(ctx), time.Second)
	})

	t.Run("round-trips injected values", func(t *testing.T) {
		userID := id.UserID(uuid.New())
		fixed := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

		ctx := WithUserID(ctx, userID)
		ctx = WithRequestID(ctx, "req-123")
		ctx = WithTime(ctx, fixed)

		assert.Equal(t, userID, UserID(ctx))
		assert.Equal(t, "req-123", RequestID(ctx))
		assert.Equal(t, fixed, Now(ctx))
	})
}
