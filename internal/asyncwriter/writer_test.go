package asyncwriter

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ovframework/ovf/internal/test"
)

func TestWriterError(t *testing.T) {
	w := &Writer{
		QueueSize: 10,
		Parent:    test.NilLogger,
	}
	err := w.Initialize()
	require.NoError(t, err)

	w.Start()
	defer w.Stop()

	w.Push(func() error {
		return fmt.Errorf("testerror")
	})

	err = <-w.Error()
	require.EqualError(t, err, "testerror")
}

func TestWriterOrderAndOverflow(t *testing.T) {
	w := &Writer{
		QueueSize: 3,
		Parent:    test.NilLogger,
	}
	err := w.Initialize()
	require.NoError(t, err)

	// the routine is not started yet, therefore the queue fills up
	out := make(chan int, 10)
	pushed := 0
	for i := 0; i < 10; i++ {
		i := i
		if w.Push(func() error {
			out <- i
			return nil
		}) {
			pushed++
		}
	}

	// the queue size is rounded up to a power of two
	require.Equal(t, 4, pushed)
	require.Equal(t, uint64(6), w.Discarded())

	w.Start()
	defer w.Stop()

	for i := 0; i < 4; i++ {
		require.Equal(t, i, <-out)
	}
}

func TestWriterInvalidSize(t *testing.T) {
	w := &Writer{Parent: test.NilLogger}
	require.Error(t, w.Initialize())
}
