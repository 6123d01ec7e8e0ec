package command_test

import (
	"testing"

	"github.com/fwojciec/agentruntime/command"
	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	t.Parallel()

	t.Run("allows ordinary commands", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, command.Validate("echo hello"))
		assert.NoError(t, command.Validate("ls -la /tmp"))
		assert.NoError(t, command.Validate("git status && git diff"))
	})

	t.Run("allows rm of a specific file", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, command.Validate("rm -rf /tmp/scratch-dir"))
		assert.NoError(t, command.Validate("rm somefile.txt"))
	})

	t.Run("blocks recursive force-delete of root", func(t *testing.T) {
		t.Parallel()
		assert.Error(t, command.Validate("rm -rf /"))
		assert.Error(t, command.Validate("rm -rf ~"))
		assert.Error(t, command.Validate("rm -r -f /"))
	})

	t.Run("blocks mkfs", func(t *testing.T) {
		t.Parallel()
		assert.Error(t, command.Validate("mkfs.ext4 /dev/sda1"))
	})

	t.Run("blocks dd writing to a device", func(t *testing.T) {
		t.Parallel()
		assert.Error(t, command.Validate("dd if=/dev/zero of=/dev/sda"))
	})

	t.Run("allows dd writing to a regular file", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, command.Validate("dd if=/dev/zero of=/tmp/scratch.img bs=1M count=1"))
	})

	t.Run("blocks a classic fork bomb", func(t *testing.T) {
		t.Parallel()
		assert.Error(t, command.Validate(":(){ :|:& };:"))
	})

	t.Run("blocked command detected after a benign prefix", func(t *testing.T) {
		t.Parallel()
		assert.Error(t, command.Validate("echo about to wipe && rm -rf /"))
	})
}
