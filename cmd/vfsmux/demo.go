package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vfsmux/vfsmux/backend/devfs"
	"github.com/vfsmux/vfsmux/backend/ramfs"
	"github.com/vfsmux/vfsmux/backend/sockfs"
	"github.com/vfsmux/vfsmux/vfs"
)

var demoMessages int

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "run a multiplexed select loop over devfs and sockfs, logging to ramfs",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDemo(cmd, demoMessages)
	},
}

func init() {
	demoCmd.Flags().IntVar(&demoMessages, "messages", 5, "messages to push through each channel")
}

// runDemo mounts the three backends, then runs a producer feeding the uart
// pipe, a producer writing to a socket pair, and one consumer selecting
// over both, logging everything it receives to a ramfs file.
func runDemo(cmd *cobra.Command, messages int) error {
	v := vfs.New(nil)

	if _, err := ramfs.Mount(v, "/data"); err != nil {
		return fmt.Errorf("mount ramfs: %w", err)
	}
	dev, err := devfs.Mount(v, "/dev")
	if err != nil {
		return fmt.Errorf("mount devfs: %w", err)
	}
	uart := devfs.NewPipe(64)
	if err := dev.Add("uart0", uart); err != nil {
		return fmt.Errorf("add uart0: %w", err)
	}
	socks, err := sockfs.Mount(v)
	if err != nil {
		return fmt.Errorf("mount sockfs: %w", err)
	}
	sockTx, sockRx, err := socks.Pair()
	if err != nil {
		return fmt.Errorf("socket pair: %w", err)
	}

	uartFd, err := v.Open("/dev/uart0", os.O_RDONLY, 0)
	if err != nil {
		return fmt.Errorf("open uart: %w", err)
	}
	logFd, err := v.Open("/data/demo.log", os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}

	var g errgroup.Group
	g.Go(func() error {
		for i := 0; i < messages; i++ {
			if _, err := uart.Feed([]byte(fmt.Sprintf("uart %d\n", i))); err != nil {
				return fmt.Errorf("feed uart: %w", err)
			}
			time.Sleep(time.Millisecond)
		}
		return nil
	})
	g.Go(func() error {
		for i := 0; i < messages; i++ {
			if _, err := v.Write(sockTx, []byte(fmt.Sprintf("sock %d\n", i))); err != nil {
				return fmt.Errorf("write socket: %w", err)
			}
			time.Sleep(time.Millisecond)
		}
		return nil
	})
	g.Go(func() error {
		received := 0
		buf := make([]byte, 128)
		for received < 2*messages {
			var readfds vfs.FdSet
			readfds.Set(uartFd)
			readfds.Set(sockRx)
			nfds := sockRx + 1
			if uartFd >= nfds {
				nfds = uartFd + 1
			}
			timeout := time.Second
			n, err := v.Select(nfds, &readfds, nil, nil, &timeout)
			if err != nil {
				return fmt.Errorf("select: %w", err)
			}
			if n == 0 {
				return fmt.Errorf("select timed out after %d messages", received)
			}
			for _, fd := range []int{uartFd, sockRx} {
				if !readfds.IsSet(fd) {
					continue
				}
				n, err := v.Read(fd, buf)
				if err != nil || n == 0 {
					continue
				}
				received += countLines(buf[:n])
				if _, err := v.Write(logFd, buf[:n]); err != nil {
					return fmt.Errorf("write log: %w", err)
				}
			}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	if err := v.Close(logFd); err != nil {
		return err
	}
	st, err := v.Stat("/data/demo.log")
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "received %d messages, log is %d bytes\n", 2*messages, st.Size)
	v.DumpFds(cmd.OutOrStdout())
	return nil
}

func countLines(p []byte) int {
	n := 0
	for _, c := range p {
		if c == '\n' {
			n++
		}
	}
	return n
}
