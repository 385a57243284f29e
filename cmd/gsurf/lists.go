package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/vidyasagar/gsurf/internal/storage"
)

var historyCmd = &cobra.Command{
	Use:   "history [query]",
	Short: "List visited pages, optionally matching a query",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		hs := storage.NewHistoryStore(e.db)
		var entries []storage.HistoryEntry
		if len(args) == 1 {
			entries, err = hs.Search(args[0])
		} else {
			limit, _ := cmd.Flags().GetInt("limit")
			entries, err = hs.List(limit)
		}
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Nothing found.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "VISITED\tTITLE\tADDRESS")
		for _, h := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\n", humanize.Time(h.VisitedAt), h.Title, h.URL)
		}
		return w.Flush()
	},
}

var bookmarksCmd = &cobra.Command{
	Use:   "bookmarks [query]",
	Short: "List bookmarks, optionally matching a title, address or tag",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		bs := storage.NewBookmarkStore(e.db)
		bookmarks := bs.List()
		if len(args) == 1 {
			bookmarks = bs.Search(args[0])
		}
		if len(bookmarks) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Nothing found.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TITLE\tADDRESS\tTAGS")
		for _, b := range bookmarks {
			fmt.Fprintf(w, "%s\t%s\t%s\n", b.Title, b.URL, strings.Join(b.Tags, ","))
		}
		return w.Flush()
	},
}

func init() {
	historyCmd.Flags().Int("limit", 50, "number of entries to list without a query")
	rootCmd.AddCommand(historyCmd, bookmarksCmd)
}
