// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/bassosimone/afsock"
	"github.com/spf13/cobra"
)

func newProbeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Probe the capabilities of the running kernel",
		Args:  cobra.NoArgs,
		RunE:  probeAction,
	}
	return cmd
}

func probeAction(cmd *cobra.Command, _ []string) error {
	cfg := afsock.NewConfig()
	snapshot := cfg.Capabilities.Snapshot()

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 4, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "CAPABILITY\tSUPPORTED")
	for _, c := range afsock.AllCapabilities() {
		fmt.Fprintf(tw, "%s\t%t\n", c, snapshot[c])
	}
	if snapshot[afsock.CapabilityVSOCK] {
		if cid, err := afsock.LocalContextID(); err == nil {
			fmt.Fprintf(tw, "vsock-local-cid\t%d\n", cid)
		}
	}
	return tw.Flush()
}
