//go:build windows

package externalcmd

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/kballard/go-shellquote"
)

func (e *Cmd) runOSSpecific(env []string) error {
	cmdParts, err := shellquote.Split(e.cmdstr)
	if err != nil {
		return err
	}
	if len(cmdParts) == 0 {
		return fmt.Errorf("command is empty")
	}

	cmd := exec.Command(cmdParts[0], cmdParts[1:]...)

	cmd.Env = env
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err = cmd.Start()
	if err != nil {
		return err
	}

	cmdDone := make(chan error, 1)
	go func() {
		cmdDone <- cmd.Wait()
	}()

	select {
	case <-e.terminate:
		cmd.Process.Kill() //nolint:errcheck
		<-cmdDone
		return errTerminated

	case err = <-cmdDone:
		if err != nil {
			return fmt.Errorf("command failed: %w", err)
		}
		return nil
	}
}
