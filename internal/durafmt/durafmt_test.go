package durafmt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSince(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	require.Equal(t, "3 days ago", Since(now.Add(-72*time.Hour), now))
	require.Equal(t, "1 hour ago", Since(now.Add(-90*time.Minute), now))
	require.Equal(t, "now", Since(now.Add(time.Hour), now))
}
