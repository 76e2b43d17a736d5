package confwatcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNoFile(t *testing.T) {
	w := &ConfWatcher{FilePath: "/nonexistent"}
	err := w.Initialize()
	require.Error(t, err)
}

func TestWrite(t *testing.T) {
	fpath := filepath.Join(t.TempDir(), "ovf.yml")
	err := os.WriteFile(fpath, []byte("logLevel: info\n"), 0o644)
	require.NoError(t, err)

	w := &ConfWatcher{FilePath: fpath}
	err = w.Initialize()
	require.NoError(t, err)
	defer w.Close()

	err = os.WriteFile(fpath, []byte("logLevel: debug\n"), 0o644)
	require.NoError(t, err)

	select {
	case <-w.Watch():
	case <-time.After(500 * time.Millisecond):
		t.Errorf("timed out")
	}
}

func TestWriteOtherFile(t *testing.T) {
	dir := t.TempDir()
	fpath := filepath.Join(dir, "ovf.yml")
	err := os.WriteFile(fpath, []byte("logLevel: info\n"), 0o644)
	require.NoError(t, err)

	w := &ConfWatcher{FilePath: fpath}
	err = w.Initialize()
	require.NoError(t, err)
	defer w.Close()

	err = os.WriteFile(filepath.Join(dir, "other.yml"), []byte("a: b\n"), 0o644)
	require.NoError(t, err)

	select {
	case <-w.Watch():
		t.Errorf("unexpected signal")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestRename(t *testing.T) {
	dir := t.TempDir()
	fpath := filepath.Join(dir, "ovf.yml")
	err := os.WriteFile(fpath, []byte("logLevel: info\n"), 0o644)
	require.NoError(t, err)

	w := &ConfWatcher{FilePath: fpath}
	err = w.Initialize()
	require.NoError(t, err)
	defer w.Close()

	tmp := filepath.Join(dir, "ovf.yml.tmp")
	err = os.WriteFile(tmp, []byte("logLevel: debug\n"), 0o644)
	require.NoError(t, err)

	err = os.Rename(tmp, fpath)
	require.NoError(t, err)

	select {
	case <-w.Watch():
	case <-time.After(500 * time.Millisecond):
		t.Errorf("timed out")
	}
}
