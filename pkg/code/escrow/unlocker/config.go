package unlocker

import (
	"time"

	"github.com/code-payments/token-escrow/pkg/config"
	"github.com/code-payments/token-escrow/pkg/config/env"
	"github.com/code-payments/token-escrow/pkg/config/memory"
	"github.com/code-payments/token-escrow/pkg/config/wrapper"
)

const (
	envConfigPrefix = "ESCROW_UNLOCKER_"

	BatchSizeConfigEnvName = envConfigPrefix + "BATCH_SIZE"
	defaultBatchSize       = 100

	SubmissionsPerSecondConfigEnvName = envConfigPrefix + "SUBMISSIONS_PER_SECOND"
	defaultSubmissionsPerSecond       = 50

	MaxSubmissionAttemptsConfigEnvName = envConfigPrefix + "MAX_SUBMISSION_ATTEMPTS"
	defaultMaxSubmissionAttempts       = 5

	SubmissionBackoffConfigEnvName = envConfigPrefix + "SUBMISSION_BACKOFF"
	defaultSubmissionBackoff       = 250 * time.Millisecond

	DisabledConfigEnvName = envConfigPrefix + "DISABLED"
	defaultDisabled       = false
)

type conf struct {
	batchSize             config.Uint64
	submissionsPerSecond  config.Uint64
	maxSubmissionAttempts config.Uint64
	submissionBackoff     config.Duration
	disabled              config.Bool
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			batchSize:             env.NewUint64Config(BatchSizeConfigEnvName, defaultBatchSize),
			submissionsPerSecond:  env.NewUint64Config(SubmissionsPerSecondConfigEnvName, defaultSubmissionsPerSecond),
			maxSubmissionAttempts: env.NewUint64Config(MaxSubmissionAttemptsConfigEnvName, defaultMaxSubmissionAttempts),
			submissionBackoff:     env.NewDurationConfig(SubmissionBackoffConfigEnvName, defaultSubmissionBackoff),
			disabled:              env.NewBoolConfig(DisabledConfigEnvName, defaultDisabled),
		}
	}
}

type testOverrides struct {
	batchSize             uint64
	maxSubmissionAttempts uint64
	disabled              bool
}

func withManualTestOverrides(overrides *testOverrides) ConfigProvider {
	return func() *conf {
		return &conf{
			batchSize:             wrapper.NewUint64Config(memory.NewConfig(overrides.batchSize), defaultBatchSize),
			submissionsPerSecond:  wrapper.NewUint64Config(memory.NewConfig(uint64(1_000)), defaultSubmissionsPerSecond),
			maxSubmissionAttempts: wrapper.NewUint64Config(memory.NewConfig(overrides.maxSubmissionAttempts), defaultMaxSubmissionAttempts),
			submissionBackoff:     wrapper.NewDurationConfig(memory.NewConfig(time.Millisecond), defaultSubmissionBackoff),
			disabled:              wrapper.NewBoolConfig(memory.NewConfig(overrides.disabled), defaultDisabled),
		}
	}
}
