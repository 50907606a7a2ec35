package runner

import (
	"github.com/shirou/gopsutil/v3/process"

	"github.com/teranos/protoreg/errors"
)

// killTree kills pid and all of its descendants, children first.
// Generator launchers are shell or .bat wrappers that start the real
// generator as a child; killing only the wrapper would orphan it.
func killTree(pid int) error {
	root, err := process.NewProcess(int32(pid))
	if err != nil {
		// Already gone
		return nil
	}
	return killProcess(root)
}

func killProcess(p *process.Process) error {
	children, err := p.Children()
	if err != nil && !errors.Is(err, process.ErrorNoChildren) {
		return errors.Wrapf(err, "failed to list children of pid %d", p.Pid)
	}
	for _, child := range children {
		// Best effort: a child exiting on its own is fine
		_ = killProcess(child)
	}
	if err := p.Kill(); err != nil {
		if running, _ := p.IsRunning(); !running {
			return nil
		}
		return errors.Wrapf(err, "failed to kill pid %d", p.Pid)
	}
	return nil
}
