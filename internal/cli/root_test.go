package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_Subcommands(t *testing.T) {
	cmd := NewRootCommand()

	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	assert.True(t, names["serve"])
	assert.True(t, names["migrate"])
	assert.True(t, names["reconcile"])
}

func TestServeCommand_MigrateFlag(t *testing.T) {
	cmd := NewServeCommand()
	f := cmd.Flags().Lookup("migrate")
	require.NotNil(t, f)
	assert.Equal(t, "false", f.DefValue)
}

func TestReconcileCommand_RejectsNonPositiveLimit(t *testing.T) {
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"reconcile", "--limit", "0"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --limit 0")
}

func TestMigrateCommand_RejectsArgs(t *testing.T) {
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"migrate", "extra"})

	require.Error(t, cmd.Execute())
}
