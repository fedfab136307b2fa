//go:build windows

package platform

import (
	"os"
	"os/exec"
)

func setProcessGroup(cmd *exec.Cmd) {}

func termGroup(p *os.Process) error {
	return p.Kill()
}

func killGroup(p *os.Process) error {
	return p.Kill()
}

func isNoSuchProcess(err error) bool {
	return false
}
