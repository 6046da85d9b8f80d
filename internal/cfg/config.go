// Package cfg parses process configuration from the environment the
// way the teacher's internal/cfg package does, using caarlos0/env
// struct tags instead of hand-rolled os.Getenv calls.
package cfg

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// DeploymentAlgorithm selects the scoring strategy PlacementPlanner
// dispatches to during the decide phase.
type DeploymentAlgorithm string

const (
	DeploymentRandom     DeploymentAlgorithm = "random"
	DeploymentLatency    DeploymentAlgorithm = "latency"
	DeploymentMoney      DeploymentAlgorithm = "money"
	DeploymentGreen      DeploymentAlgorithm = "green"
	DeploymentBestFirst  DeploymentAlgorithm = "best"
	DeploymentWorst      DeploymentAlgorithm = "worst"
	DeploymentGRASP      DeploymentAlgorithm = "grasp"
)

// ReconfigAlgorithm selects the LearnEngine's bandit/meta-policy.
type ReconfigAlgorithm string

const (
	ReconfigNone            ReconfigAlgorithm = "app_none"
	ReconfigCooldown        ReconfigAlgorithm = "app_cooldown"
	ReconfigGreedy          ReconfigAlgorithm = "app_greedy"
	ReconfigV0              ReconfigAlgorithm = "app_v0"
	ReconfigV1              ReconfigAlgorithm = "app_v1"
	ReconfigCentral         ReconfigAlgorithm = "app_central"
	ReconfigCentralNoGreedy ReconfigAlgorithm = "app_central_nogreedy"
	ReconfigFarseeing       ReconfigAlgorithm = "app_farseeing"
	ReconfigLearnV0         ReconfigAlgorithm = "app_learn_v0"
	ReconfigLearnV1         ReconfigAlgorithm = "app_learn_v1"
	ReconfigLearnV2         ReconfigAlgorithm = "app_learn_v2"
	ReconfigLearnV3         ReconfigAlgorithm = "app_learn_v3"
	ReconfigUCB             ReconfigAlgorithm = "app_ucb"
	ReconfigUCB2            ReconfigAlgorithm = "app_ucb2"
	ReconfigSAO             ReconfigAlgorithm = "app_sao"
)

// StorageType selects the Registry backend.
type StorageType string

const (
	StorageMemory StorageType = "memory"
	StorageRedis  StorageType = "redis"
)

// GraspVariant selects the GRASP post-optimization flavor used by the
// money algorithm.
type GraspVariant string

const (
	GraspV0 GraspVariant = "v0"
	GraspV1 GraspVariant = "v1"
	GraspV2 GraspVariant = "v2"
)

// Config mirrors the [global]/[learn] configuration keys from the
// external-interfaces contract, parsed with env struct tags the way
// the teacher parses its Config.
type Config struct {
	ServiceName string `env:"SERVICE_NAME" envDefault:"placement-core"`
	Port        int    `env:"PORT" envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	ReconfigAlgorithm ReconfigAlgorithm   `env:"RECONFIG_ALGORITHM" envDefault:"app_learn_v0"`
	DeploymentAlgorithm DeploymentAlgorithm `env:"DEPLOYMENT_ALGORITHM" envDefault:"best"`
	DeploymentNSamples  int                 `env:"DEPLOYMENT_N_SAMPLES" envDefault:"8"`
	DeploymentTolerance float64             `env:"DEPLOYMENT_TOLERANCE" envDefault:"1.5"`
	DeploymentEpsilonGreedy float64         `env:"DEPLOYMENT_EPSILON_GREEDY" envDefault:"0.1"`
	Grasp               GraspVariant        `env:"GRASP" envDefault:"v1"`
	DeploymentLinkCostPerKbit float64       `env:"DEPLOYMENT_LINK_COST_PER_KBIT" envDefault:"0.0001"`

	StorageType  StorageType `env:"STORAGE_TYPE" envDefault:"memory"`
	StorageProxy string      `env:"STORAGE_PROXY" envDefault:""`
	RedisURL     string      `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`

	PostgresDSN string `env:"POSTGRES_DSN" envDefault:""`

	NomadAddress string `env:"NOMAD_ADDR" envDefault:""`

	LearnK      int     `env:"LEARN_K" envDefault:"4"`
	LearnEpsilon float64 `env:"LEARN_EPSILON" envDefault:"0.1"`
	LearnFMax    float64 `env:"LEARN_F_MAX" envDefault:"5.0"`
	LearnLambda  float64 `env:"LEARN_LAMBDA" envDefault:"0.5"`
	LearnRate    float64 `env:"LEARN_RATE" envDefault:"0.6"`
	LearnAlpha   float64 `env:"LEARN_ALPHA" envDefault:"2.0"`
	LearnBeta    float64 `env:"LEARN_BETA" envDefault:"2.0"`

	DeployTimeoutSeconds int `env:"DEPLOY_TIMEOUT_SECONDS" envDefault:"15"`
	OracleLeadSeconds    int `env:"ORACLE_LEAD_SECONDS" envDefault:"2"`

	OTLPEndpoint string `env:"OTLP_ENDPOINT" envDefault:""`
}

// Parse reads Config from the environment, falling back to the
// envDefault tags for anything unset.
func Parse() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	return c, nil
}
