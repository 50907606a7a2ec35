//go:build unix

package runner

import (
	"context"
	"fmt"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetProcAttr_OwnProcessGroup(t *testing.T) {
	cmd := exec.Command("sh", "-c", "true")
	setProcAttr(cmd)
	require.NotNil(t, cmd.SysProcAttr)
	assert.True(t, cmd.SysProcAttr.Setpgid)
}

func TestExecRunner_ChildLeadsItsGroup(t *testing.T) {
	// ps prints the child's pid and process group id
	res, err := NewExecRunner("").Run(context.Background(), "sh", "-c", `ps -o pid= -o pgid= -p $$`)
	if err != nil || res.ExitCode != 0 {
		t.Skip("ps unavailable")
	}
	var pid, pgid int
	_, scanErr := fmt.Sscan(string(res.Stdout), &pid, &pgid)
	require.NoError(t, scanErr)
	assert.Equal(t, pid, pgid)
}
