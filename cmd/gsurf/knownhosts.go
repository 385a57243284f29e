package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var knownHostsCmd = &cobra.Command{
	Use:   "known-hosts",
	Short: "List pinned server certificates",
	Long:  `List the certificate fingerprints trusted on first use, one host per line.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		pins, err := e.pins.List()
		if err != nil {
			return err
		}
		if len(pins) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No certificates pinned yet.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "HOST\tFINGERPRINT\tFIRST SEEN\tEXPIRES")
		for _, p := range pins {
			expires := "-"
			if !p.ExpiresAt.IsZero() {
				expires = p.ExpiresAt.Format("2006-01-02")
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.Host, p.Fingerprint, humanize.Time(p.FirstSeen), expires)
		}
		return w.Flush()
	},
}

var knownHostsForgetCmd = &cobra.Command{
	Use:   "forget <host>...",
	Short: "Forget pinned certificates so the next one is trusted",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		for _, host := range args {
			removed, err := e.pins.Forget(host)
			if err != nil {
				return err
			}
			if removed {
				fmt.Fprintf(cmd.OutOrStdout(), "Forgot %s\n", host)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "No certificate pinned for %s\n", host)
			}
		}
		return nil
	},
}

func init() {
	knownHostsCmd.AddCommand(knownHostsForgetCmd)
	rootCmd.AddCommand(knownHostsCmd)
}
