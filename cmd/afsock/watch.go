// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/bassosimone/afsock"
	"github.com/spf13/cobra"
)

func newWatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the TIPC topology service",
		Long: `Watch the TIPC topology service.

Subscribe to service ranges, node ports or link state changes and print
each event until interrupted.`,
		Example: `  $ afsock watch --service 100:0:10
  $ afsock watch --ports 0:4294967295 --link-state`,
		Args: cobra.NoArgs,
		RunE: watchAction,
	}
	cmd.Flags().StringSlice("service", nil, "Subscribe to service TYPE:LOWER:UPPER (repeatable)")
	cmd.Flags().String("ports", "", "Subscribe to the ports of nodes LOWER:UPPER")
	cmd.Flags().Bool("link-state", false, "Subscribe to link state changes")
	cmd.Flags().Duration("sub-timeout", 0, "Subscription timeout, zero to wait forever")
	return cmd
}

func watchAction(cmd *cobra.Command, _ []string) error {
	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}
	logger = logger.With("spanID", afsock.NewSpanID())

	d, _ := cmd.Flags().GetDuration("sub-timeout")
	timeout, err := subscriptionTimeout(d)
	if err != nil {
		return fmt.Errorf("--sub-timeout: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	cfg := afsock.NewConfig()
	linkState, _ := cmd.Flags().GetBool("link-state")
	var links linkNamer
	if linkState {
		links = openLinkNamer(cfg, logger)
		defer closeLinkNamer(links)
	}

	out := cmd.OutOrStdout()
	listener := afsock.TopologyListenerFunc(func(event *afsock.TopologyEvent) {
		fmt.Fprintln(out, describeEvent(event, links))
	})
	watcher := afsock.NewTopologyWatcher(cfg, listener, logger)
	defer watcher.Close()

	watcher.DefaultTimeout = timeout

	subscribed := false
	services, _ := cmd.Flags().GetStringSlice("service")
	for _, service := range services {
		fields, err := parseRange(service, 3)
		if err != nil {
			return fmt.Errorf("--service: %w", err)
		}
		if _, err := watcher.AddServiceSubscription(ctx, fields[0], fields[1], fields[2], timeout); err != nil {
			return err
		}
		subscribed = true
	}
	if ports, _ := cmd.Flags().GetString("ports"); ports != "" {
		fields, err := parseRange(ports, 2)
		if err != nil {
			return fmt.Errorf("--ports: %w", err)
		}
		if _, err := watcher.AddPortSubscription(ctx, fields[0], fields[1]); err != nil {
			return err
		}
		subscribed = true
	}
	if linkState {
		if _, err := watcher.AddLinkStateSubscription(ctx); err != nil {
			return err
		}
		subscribed = true
	}
	if !subscribed {
		return errors.New("nothing to watch: use --service, --ports or --link-state")
	}

	return watcher.RunLoop(ctx)
}

// linkNamer resolves the name of a TIPC link.
type linkNamer interface {
	LinkName(peer, bearerID uint32) (string, error)
}

func closeLinkNamer(links linkNamer) {
	if closer, ok := links.(interface{ Close() error }); ok {
		closer.Close()
	}
}

// describeEvent renders event, adding the link name to link state events
// when links can resolve it.
func describeEvent(event *afsock.TopologyEvent, links linkNamer) string {
	text := event.String()
	peer, bearerID, ok := event.LinkPeer()
	if !ok || links == nil {
		return text
	}
	if name, err := links.LinkName(peer, bearerID); err == nil && name != "" {
		text += ";link=" + name
	}
	return text
}

// parseRange parses count colon-separated uint32 values.
func parseRange(s string, count int) ([]uint32, error) {
	parts := strings.Split(s, ":")
	if len(parts) != count {
		return nil, fmt.Errorf("expected %d colon-separated values, got %q", count, s)
	}
	values := make([]uint32, 0, count)
	for _, p := range parts {
		v, err := strconv.ParseUint(p, 0, 32)
		if err != nil {
			return nil, err
		}
		values = append(values, uint32(v))
	}
	return values, nil
}

// maxSubscriptionTimeout is the longest timeout that does not collide
// with [afsock.TIPCWaitForever].
const maxSubscriptionTimeout = time.Duration(afsock.TIPCWaitForever-1) * time.Millisecond

// subscriptionTimeout converts d to the milliseconds of a subscription.
// Zero means waiting forever and positive values round up to 1ms.
func subscriptionTimeout(d time.Duration) (uint32, error) {
	switch {
	case d == 0:
		return afsock.TIPCWaitForever, nil
	case d < 0:
		return 0, fmt.Errorf("negative timeout %s", d)
	case d > maxSubscriptionTimeout:
		return 0, fmt.Errorf("timeout %s exceeds %s", d, maxSubscriptionTimeout)
	}
	return uint32((d + time.Millisecond - 1) / time.Millisecond), nil
}
