package util_test

import (
	"testing"
	"time"

	"github.com/hugh/addon-herd/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextCronTime(t *testing.T) {
	from := time.Date(2026, 3, 10, 11, 30, 0, 0, time.UTC)

	t.Run("every six hours", func(t *testing.T) {
		next, err := util.NextCronTime("0 */6 * * *", from)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC), next)
	})

	t.Run("daily at midnight", func(t *testing.T) {
		next, err := util.NextCronTime("0 0 * * *", from)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC), next)
	})

	t.Run("invalid expression", func(t *testing.T) {
		_, err := util.NextCronTime("not a cron", from)
		assert.Error(t, err)
	})
}

func TestValidateCronExpr(t *testing.T) {
	assert.NoError(t, util.ValidateCronExpr("*/15 * * * *"))
	assert.Error(t, util.ValidateCronExpr("61 * * * *"))
	assert.Error(t, util.ValidateCronExpr(""))
}
