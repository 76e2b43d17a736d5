// Package externalcmd allows to launch external commands.
package externalcmd

import (
	"errors"
	"os"
	"strings"
	"sync"
)

var errTerminated = errors.New("terminated")

// Environment is a Cmd environment.
type Environment map[string]string

// Cmd is an external command that runs once.
type Cmd struct {
	pool   *Pool
	cmdstr string
	env    Environment
	onExit func(error)

	closeOnce sync.Once

	// in
	terminate chan struct{}
}

// NewCmd allocates a Cmd and starts it.
// onExit is called when the command exits, unless the command is terminated.
func NewCmd(
	pool *Pool,
	cmdstr string,
	env Environment,
	onExit func(error),
) *Cmd {
	// replace variables in both Linux and Windows, in order to allow using the
	// same commands on both of them.
	for key, val := range env {
		cmdstr = strings.ReplaceAll(cmdstr, "$"+key, val)
	}

	e := &Cmd{
		pool:      pool,
		cmdstr:    cmdstr,
		env:       env,
		onExit:    onExit,
		terminate: make(chan struct{}),
	}

	pool.add(e)

	go e.run()

	return e
}

// Close terminates the command. It doesn't wait for the command to exit.
func (e *Cmd) Close() {
	e.closeOnce.Do(func() {
		close(e.terminate)
	})
}

func (e *Cmd) run() {
	defer e.pool.remove(e)

	env := append([]string(nil), os.Environ()...)
	for key, val := range e.env {
		env = append(env, key+"="+val)
	}

	err := e.runOSSpecific(env)
	if errors.Is(err, errTerminated) {
		return
	}

	if e.onExit != nil {
		e.onExit(err)
	}
}
