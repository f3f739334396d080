package gateway

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plattproject/cluster-gateway/pkg/cluster"
)

func TestSelfTest(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	require.NoError(t, SelfTest(ctx))
}

func TestNewFailsOnOccupiedPort(t *testing.T) {
	blocker, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer blocker.Close()

	_, err = New(Config{
		Connector:      cluster.NewMemoryCluster(),
		SimulationAddr: blocker.Addr().String(),
		BackendAddr:    "127.0.0.1:0",
		Settings:       DefaultSettings(),
	})
	assert.Error(t, err)
}

func TestNewRejectsBadLayout(t *testing.T) {
	settings := DefaultSettings()
	settings.PoolLayout.Index = 0

	_, err := New(Config{
		Connector:      cluster.NewMemoryCluster(),
		SimulationAddr: "127.0.0.1:0",
		BackendAddr:    "127.0.0.1:0",
		Settings:       settings,
	})
	assert.Error(t, err)
}
