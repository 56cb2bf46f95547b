// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"encoding/hex"
	"fmt"

	"github.com/bassosimone/afsock"
	"github.com/spf13/cobra"
)

func newParseCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse FAMILY ADDRESS",
		Short: "Convert an address between its external and native forms",
		Long: `Convert an address between its external and native forms.

By default, ADDRESS is in external form and the native sockaddr bytes are
printed in hex. With --decode, ADDRESS is hex and the external form is printed.`,
		Example: `  $ afsock parse unix @my-service
  $ afsock parse vsock host:1024
  $ afsock parse --decode unix 01000078`,
		Args: cobra.ExactArgs(2),
		RunE: parseAction,
	}
	cmd.Flags().Bool("decode", false, "Decode hex native bytes instead of encoding")
	return cmd
}

func parseAction(cmd *cobra.Command, args []string) error {
	family, err := afsock.ParseFamily(args[0])
	if err != nil {
		return err
	}

	if decode, _ := cmd.Flags().GetBool("decode"); decode {
		data, err := hex.DecodeString(args[1])
		if err != nil {
			return err
		}
		addr, err := afsock.DecodeAddress(family, data)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), addr)
		return nil
	}

	addr, err := afsock.ParseAddress(family, args[1])
	if err != nil {
		return err
	}
	data, err := afsock.EncodeAddress(addr)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(data))
	return nil
}
