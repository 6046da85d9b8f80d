package cfg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	config, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, "placement-core", config.ServiceName)
	assert.Equal(t, 8080, config.Port)
	assert.Equal(t, StorageMemory, config.StorageType)
	assert.Equal(t, DeploymentBestFirst, config.DeploymentAlgorithm)
	assert.Equal(t, ReconfigLearnV0, config.ReconfigAlgorithm)
	assert.InDelta(t, 1.5, config.DeploymentTolerance, 1e-9)
}

func TestParseOverrides(t *testing.T) {
	t.Setenv("STORAGE_TYPE", "redis")
	t.Setenv("REDIS_URL", "redis://cache:6379/1")
	t.Setenv("DEPLOYMENT_ALGORITHM", "grasp")
	t.Setenv("RECONFIG_ALGORITHM", "app_sao")
	t.Setenv("DEPLOYMENT_EPSILON_GREEDY", "0.25")

	config, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, StorageRedis, config.StorageType)
	assert.Equal(t, "redis://cache:6379/1", config.RedisURL)
	assert.Equal(t, DeploymentGRASP, config.DeploymentAlgorithm)
	assert.Equal(t, ReconfigSAO, config.ReconfigAlgorithm)
	assert.InDelta(t, 0.25, config.DeploymentEpsilonGreedy, 1e-9)
}
