//go:build !windows

package externalcmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCmd(t *testing.T) {
	dir := t.TempDir()

	p := &Pool{}
	p.Initialize()
	defer p.Close()

	done := make(chan error, 1)

	NewCmd(p, "touch '"+dir+"/$SEGMENT_NAME'", Environment{
		"SEGMENT_NAME": "seg 1",
	}, func(err error) {
		done <- err
	})

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out")
	}

	_, err := os.Stat(filepath.Join(dir, "seg 1"))
	require.NoError(t, err)
}

func TestCmdFailure(t *testing.T) {
	p := &Pool{}
	p.Initialize()
	defer p.Close()

	done := make(chan error, 1)

	NewCmd(p, "false", nil, func(err error) {
		done <- err
	})

	require.Error(t, <-done)
}

func TestCmdTerminate(t *testing.T) {
	p := &Pool{}
	p.Initialize()

	called := make(chan struct{}, 1)

	NewCmd(p, "sleep 10", nil, func(_ error) {
		called <- struct{}{}
	})

	time.Sleep(100 * time.Millisecond)

	start := time.Now()
	p.Close()
	require.Less(t, time.Since(start), 5*time.Second)

	select {
	case <-called:
		t.Errorf("onExit should not be called")
	default:
	}
}
