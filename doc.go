// Package serialmon is a minimal, Linux-only serial line monitor: it opens
// a serial port, polls for incoming data, and prints complete lines to an
// output writer until cancelled.
//
// The package is built for watching the console output of embedded boards
// (e.g. a Raspberry Pi Pico printing over USB-serial), where lines arrive
// newline-delimited and the only job is to get them on screen promptly.
//
// Features:
//   - Raw syscall-based serial I/O on Linux, no buffering delays
//   - Line-based reading with custom line terminator (default: \r\n)
//   - Permissive decoding: malformed bytes are replaced, never fatal
//   - Guaranteed port release on every exit path
//   - PTY-based tests for reliability
//
// This package does **not** support Windows.
//
// Example usage:
//
//	conn, err := serialmon.Open(serialmon.Config{
//	    Device:   "/dev/ttyACM0",
//	    BaudRate: 115200,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer conn.Close()
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer stop()
//
//	// Blocks until Ctrl-C or a transport error.
//	if err := serialmon.NewMonitor(conn, os.Stdout).Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package serialmon
