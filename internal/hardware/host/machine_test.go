package host

import (
	"context"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollect(t *testing.T) {
	info, err := NewGopsutilCollector().Collect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, runtime.GOOS, info.OS)
	assert.NotEmpty(t, info.Hostname)
	assert.NotEmpty(t, info.KernelArch)
}

func TestCollectCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewGopsutilCollector().Collect(ctx)
	require.Error(t, err)
}
