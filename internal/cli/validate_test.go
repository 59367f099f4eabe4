package cli

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/orderstorm/internal/config"
)

func TestValidate_Valid(t *testing.T) {
	path := writeFile(t, "storm.yaml", `
host: https://shop.example.com
load:
  stages:
    - duration: 1m
      target: 20
    - duration: 30s
      target: 0
`)

	out, err := execute(t, "validate", path, "--no-color")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ "+path+" is valid")
	assert.Contains(t, out, "Host:     https://shop.example.com")
	assert.Contains(t, out, "Executor: ramping-vus")
	assert.Contains(t, out, "Users:    20 (max)")
	assert.Contains(t, out, "Duration: 1m30s")
	assert.Contains(t, out, "Wait:     1s - 2.5s")
}

func TestValidate_Invalid(t *testing.T) {
	path := writeFile(t, "storm.yaml", "load:\n  users: -1\n")

	_, err := execute(t, "validate", path)
	require.Error(t, err)

	var verrs *config.ValidationErrors
	assert.True(t, errors.As(err, &verrs), "got %T: %v", err, err)
}

func TestValidate_RequiresOneArg(t *testing.T) {
	_, err := execute(t, "validate")
	assert.Error(t, err)
}
