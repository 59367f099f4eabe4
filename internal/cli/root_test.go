package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := newRootCmd()
	assert.Equal(t, "orderstorm", cmd.Use)
	assert.Equal(t, version, cmd.Version)

	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"run", "probe", "validate"}, names)
}

func TestRootCommand_Help(t *testing.T) {
	out, err := execute(t)
	require.NoError(t, err)
	assert.Contains(t, out, "synthetic shoppers")
	assert.Contains(t, out, "probe")
}

func TestRootCommand_UnknownCommand(t *testing.T) {
	_, err := execute(t, "perf")
	assert.Error(t, err)
}
