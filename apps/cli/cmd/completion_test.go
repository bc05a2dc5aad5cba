package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompletionCommand(t *testing.T) {
	for _, shell := range []string{"bash", "zsh", "fish", "powershell"} {
		t.Run(shell, func(t *testing.T) {
			out, err := runCLI(t, "completion", shell)
			require.NoError(t, err)
			assert.Contains(t, out, "multisync")
		})
	}
}

func TestCompletionCommand_RejectsUnknownShell(t *testing.T) {
	_, err := runCLI(t, "completion", "tcsh")
	assert.Error(t, err)
}
