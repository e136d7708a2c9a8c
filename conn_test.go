package serialmon

import (
	"testing"
	"time"

	"github.com/creack/pty"
	"github.com/stretchr/testify/require"
)

func TestConn_ReadLineBasic(t *testing.T) {
	master, slave, err := pty.Open()
	require.NoError(t, err)
	t.Cleanup(func() { master.Close(); slave.Close() })

	conn, err := Open(Config{Device: slave.Name(), BaudRate: 115200})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	_, err = master.Write([]byte("hello\r\n"))
	require.NoError(t, err)

	line, err := conn.ReadLine()
	require.NoError(t, err)
	require.Equal(t, "hello", string(line))
}

func TestConn_ReadLineSplitsBufferedSegments(t *testing.T) {
	master, slave, err := pty.Open()
	require.NoError(t, err)
	t.Cleanup(func() { master.Close(); slave.Close() })

	conn, err := Open(Config{Device: slave.Name(), BaudRate: 115200})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	// One write carrying three segments, the middle one empty.
	_, err = master.Write([]byte("hello\r\n\r\nworld\r\n"))
	require.NoError(t, err)

	for _, want := range []string{"hello", "", "world"} {
		line, err := conn.ReadLine()
		require.NoError(t, err)
		require.Equal(t, want, string(line))
	}
}

func TestConn_ReadLinePartialOnTimeout(t *testing.T) {
	master, slave, err := pty.Open()
	require.NoError(t, err)
	t.Cleanup(func() { master.Close(); slave.Close() })

	conn, err := Open(Config{
		Device:      slave.Name(),
		BaudRate:    115200,
		ReadTimeout: 50 * time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	_, err = master.Write([]byte("partial"))
	require.NoError(t, err)

	start := time.Now()
	line, err := conn.ReadLine()
	require.NoError(t, err)
	require.Equal(t, "partial", string(line))
	require.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestConn_PendingReflectsQueue(t *testing.T) {
	master, slave, err := pty.Open()
	require.NoError(t, err)
	t.Cleanup(func() { master.Close(); slave.Close() })

	conn, err := Open(Config{Device: slave.Name(), BaudRate: 115200})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	n, err := conn.Pending()
	require.NoError(t, err)
	require.Zero(t, n)

	_, err = master.Write([]byte("x"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		n, err := conn.Pending()
		return err == nil && n > 0
	}, 500*time.Millisecond, 5*time.Millisecond)
}

func TestConn_OpenMissingDevice(t *testing.T) {
	conn, err := Open(Config{Device: "/dev/serialmon-does-not-exist", BaudRate: 115200})
	require.Error(t, err)
	require.Nil(t, conn)
}

func TestConn_CloseUnblocksReadLine(t *testing.T) {
	master, slave, err := pty.Open()
	require.NoError(t, err)
	t.Cleanup(func() { master.Close(); slave.Close() })

	conn, err := Open(Config{
		Device:      slave.Name(),
		BaudRate:    115200,
		ReadTimeout: 5 * time.Second,
	})
	require.NoError(t, err)

	errs := make(chan error, 1)
	go func() {
		_, err := conn.ReadLine()
		errs <- err
	}()

	// Give the goroutine a chance to block in poll
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, conn.Close())

	select {
	case err := <-errs:
		require.ErrorIs(t, err, ErrClosed)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timeout waiting for ReadLine to unblock after Close")
	}

	// Should be a no-op due to closeOnce
	require.NoError(t, conn.Close())
}

func TestConn_HangupReportsDisconnect(t *testing.T) {
	master, slave, err := pty.Open()
	require.NoError(t, err)
	t.Cleanup(func() { slave.Close() })

	conn, err := Open(Config{Device: slave.Name(), BaudRate: 115200})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	// Simulate device disconnect by closing the master end
	require.NoError(t, master.Close())

	var lastErr error
	require.Eventually(t, func() bool {
		_, lastErr = conn.Pending()
		return lastErr != nil
	}, time.Second, 5*time.Millisecond)
	require.ErrorIs(t, lastErr, ErrDisconnected)
}
