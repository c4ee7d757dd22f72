package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/carein/callboard/internal/api"
)

const timeLayout = "2006-01-02 15:04:05"

var (
	idColor     = color.New(color.FgCyan, color.Bold)
	dimColor    = color.New(color.FgHiBlack)
	labelColor  = color.New(color.FgBlue)
	actionColor = color.New(color.FgMagenta, color.Bold)
	warnColor   = color.New(color.FgYellow)
)

func newListCommand() *cobra.Command {
	var withCommlog bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print the latest summaries without the TUI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, closeLog, err := setup(cmd)
			if err != nil {
				return err
			}
			defer closeLog()

			client, err := newClient(cfg, log)
			if err != nil {
				return err
			}
			return printSummaries(cmd.Context(), cmd.OutOrStdout(), client, cfg.FetchLimit, withCommlog)
		},
	}

	cmd.Flags().Int("limit", 0, "number of summaries to fetch")
	cmd.Flags().BoolVar(&withCommlog, "commlog", false, "also print each summary's communication log")
	return cmd
}

func newShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <summary-id>",
		Short: "Print one summary and its communication log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid summary id %q", args[0])
			}

			cfg, log, closeLog, err := setup(cmd)
			if err != nil {
				return err
			}
			defer closeLog()

			client, err := newClient(cfg, log)
			if err != nil {
				return err
			}
			return printSummary(cmd.Context(), cmd.OutOrStdout(), client, id)
		},
	}
}

func newCommlogCommand() *cobra.Command {
	var skip, limit int

	cmd := &cobra.Command{
		Use:   "commlog",
		Short: "Print the communication log across all summaries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, closeLog, err := setup(cmd)
			if err != nil {
				return err
			}
			defer closeLog()

			client, err := newClient(cfg, log)
			if err != nil {
				return err
			}
			entries, err := client.AllCommlog(cmd.Context(), skip, limit)
			if err != nil {
				return fmt.Errorf("failed to fetch commlog: %s", api.Message(err))
			}
			w := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(w, "No commlog entries found.")
				return nil
			}
			for _, e := range entries {
				fmt.Fprintf(w, "%s %s\n", idColor.Sprintf("#%d", e.CallSummaryID), formatEntry(e))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&skip, "skip", 0, "entries to skip")
	cmd.Flags().IntVar(&limit, "max", 100, "maximum entries to print")
	return cmd
}

// printSummaries writes the newest summaries to w, highest id first.
func printSummaries(ctx context.Context, w io.Writer, svc api.Service, limit int, withCommlog bool) error {
	summaries, err := svc.ListSummaries(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to fetch summaries: %s", api.Message(err))
	}
	if len(summaries) == 0 {
		fmt.Fprintln(w, "No summaries found. Submit a transcript to get started!")
		return nil
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].ID > summaries[j].ID
	})

	fmt.Fprintf(w, "Call summaries (%d):\n", len(summaries))
	fmt.Fprintln(w, strings.Repeat("=", 20))
	for _, s := range summaries {
		writeSummary(w, s)
		if withCommlog {
			entries, err := svc.Commlog(ctx, s.ID)
			if err != nil {
				fmt.Fprintf(w, "   %s\n", warnColor.Sprintf("Error: %s", api.Message(err)))
			} else {
				writeCommlog(w, entries)
			}
		}
		fmt.Fprintln(w)
	}
	return nil
}

// summaryGetter is the part of the client printSummary needs.
type summaryGetter interface {
	GetSummary(ctx context.Context, id int64) (api.Summary, error)
	Commlog(ctx context.Context, summaryID int64) ([]api.CommlogEntry, error)
}

func printSummary(ctx context.Context, w io.Writer, svc summaryGetter, id int64) error {
	s, err := svc.GetSummary(ctx, id)
	if api.StatusCode(err) == http.StatusNotFound {
		return fmt.Errorf("summary %d not found: %s", id, api.Message(err))
	}
	if err != nil {
		return fmt.Errorf("failed to fetch summary %d: %s", id, api.Message(err))
	}
	writeSummary(w, s)

	entries, err := svc.Commlog(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to fetch commlog: %s", api.Message(err))
	}
	writeCommlog(w, entries)
	return nil
}

func writeSummary(w io.Writer, s api.Summary) {
	fmt.Fprintf(w, "%s  %s\n", idColor.Sprintf("ID: %d", s.ID), dimColor.Sprint("Created: "+s.CreatedAt.Local().Format(timeLayout)))
	fmt.Fprintf(w, "   %s %s\n", labelColor.Sprint("Transcript:"), s.Transcript)
	if s.HasSummary() {
		fmt.Fprintf(w, "   %s %s\n", labelColor.Sprint("Summary:"), *s.Summary)
	} else {
		fmt.Fprintf(w, "   %s %s\n", labelColor.Sprint("Summary:"), dimColor.Sprint("No summary generated yet."))
	}
	if s.UpdatedAt != nil {
		fmt.Fprintf(w, "   %s\n", dimColor.Sprint("Updated: "+s.UpdatedAt.Local().Format(timeLayout)))
	}
}

func writeCommlog(w io.Writer, entries []api.CommlogEntry) {
	fmt.Fprintf(w, "   %s\n", labelColor.Sprint("Communication Log:"))
	if len(entries) == 0 {
		fmt.Fprintf(w, "     %s\n", dimColor.Sprint("No commlog entries found."))
		return
	}
	for _, e := range entries {
		fmt.Fprintf(w, "     %s\n", formatEntry(e))
	}
}

func formatEntry(e api.CommlogEntry) string {
	msg := "No message."
	if e.Message != nil && *e.Message != "" {
		msg = *e.Message
	}
	return fmt.Sprintf("%s %s %s",
		actionColor.Sprint("["+strings.ToUpper(e.Action)+"]"),
		dimColor.Sprint(e.CreatedAt.Local().Format(timeLayout)),
		msg,
	)
}
