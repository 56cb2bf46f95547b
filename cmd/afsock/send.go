// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"io"
	"net"
	"os"
	"os/signal"
	"time"

	"github.com/bassosimone/afsock"
	"github.com/spf13/cobra"
)

func newSendCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send FAMILY ADDRESS",
		Short: "Connect to ADDRESS, send stdin and print the reply",
		Long: `Connect to ADDRESS, send stdin and print the reply.

The write side is shut down when stdin reaches EOF. The command exits
once the peer closes the connection or the timeout expires.`,
		Example: `  $ echo hello | afsock send unix /run/echo.sock
  $ echo hello | afsock send --type seqpacket tipc 100.5`,
		Args: cobra.ExactArgs(2),
		RunE: sendAction,
	}
	cmd.Flags().String("type", afsock.SocketStream.String(), "Socket type [stream, seqpacket]")
	cmd.Flags().Duration("timeout", 30*time.Second, "Overall timeout, zero to disable")
	return cmd
}

func sendAction(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}
	logger = logger.With("spanID", afsock.NewSpanID())

	family, err := afsock.ParseFamily(args[0])
	if err != nil {
		return err
	}
	addr, err := afsock.ParseAddress(family, args[1])
	if err != nil {
		return err
	}
	typeName, _ := cmd.Flags().GetString("type")
	typ, err := afsock.ParseSocketType(typeName)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	if timeout, _ := cmd.Flags().GetDuration("timeout"); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cfg := afsock.NewConfig()
	cfg.Dialer = &afsock.HandleDialer{Config: cfg, Type: typ}
	pipeline := afsock.Compose4[afsock.Unit, afsock.Address, net.Conn, net.Conn, net.Conn](
		afsock.NewEndpointFunc(addr),
		afsock.NewConnectFunc(cfg, logger),
		afsock.NewCancelWatchFunc(),
		afsock.NewObserveConnFunc(cfg, logger),
	)
	conn, err := pipeline.Call(ctx, afsock.Unit{})
	if err != nil {
		return err
	}
	defer conn.Close()

	// stdin reads cannot be interrupted: do not wait for the writer
	// once the peer is done.
	werr := make(chan error, 1)
	go func() {
		if _, err := io.Copy(conn, cmd.InOrStdin()); err != nil {
			werr <- err
			return
		}
		if hc, ok := conn.(interface{ CloseWrite() error }); ok {
			werr <- hc.CloseWrite()
			return
		}
		werr <- nil
	}()
	if _, err := io.Copy(cmd.OutOrStdout(), conn); err != nil {
		return err
	}
	select {
	case err := <-werr:
		return err
	default:
		return nil
	}
}
