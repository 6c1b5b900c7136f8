package config

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/KOMKZ/yogan-shield/breaker"
	"github.com/KOMKZ/yogan-shield/loadshed"
	"github.com/KOMKZ/yogan-shield/redis"
)

func TestValidateAll_ModuleConfigs(t *testing.T) {
	redisCfg := redis.Config{}
	redisCfg.ApplyDefaults()
	shedCfg := loadshed.DefaultConfig()

	assert.NoError(t, ValidateAll(&redisCfg, breaker.DefaultConfig(), &shedCfg))
	assert.NoError(t, ValidateAll())
}

func TestValidateAll_StopsAtFirstFailure(t *testing.T) {
	bad := breaker.Config{FailureThreshold: 0, SuccessThreshold: 1, Timeout: 1}
	badRedis := redis.Config{Mode: "sentinel"}

	err := ValidateAll(breaker.DefaultConfig(), bad, &badRedis)
	assert.ErrorContains(t, err, "failure_threshold")
}

func TestValidateSection(t *testing.T) {
	bad := breaker.Config{FailureThreshold: 0, SuccessThreshold: 1, Timeout: 1}

	err := ValidateSection("breaker", bad)
	assert.ErrorContains(t, err, "invalid breaker config")
	assert.ErrorContains(t, err, "failure_threshold")

	assert.NoError(t, ValidateSection("breaker", breaker.DefaultConfig()))
}
