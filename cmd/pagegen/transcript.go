package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"pagegen/pkg/persistence"
)

func newTranscriptCmd(flags *globalFlags) *cobra.Command {
	var dbPath string
	cmd := &cobra.Command{
		Use:   "transcript",
		Short: "Inspect recorded session transcripts",
	}
	cmd.PersistentFlags().StringVar(&dbPath, "db", "", "Transcript database (defaults to persistence.sqlite_path)")

	open := func() (*persistence.DatabaseOperations, func(), error) {
		path := dbPath
		if path == "" {
			cfg, err := flags.load()
			if err != nil {
				return nil, nil, err
			}
			path = cfg.Persistence.SQLitePath
		}
		if path == "" {
			return nil, nil, fmt.Errorf("no transcript database: set persistence.sqlite_path or --db")
		}
		db, err := persistence.InitializeDatabase(path)
		if err != nil {
			return nil, nil, err
		}
		return persistence.NewDatabaseOperations(db), func() { _ = db.Close() }, nil
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List recorded sessions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ops, done, err := open()
			if err != nil {
				return err
			}
			defer done()
			sessions, err := ops.ListSessions(limit)
			if err != nil {
				return err
			}
			return writeSessions(cmd.OutOrStdout(), sessions)
		},
	}
	list.Flags().IntVar(&limit, "limit", 20, "Maximum sessions to list (0 for all)")

	show := &cobra.Command{
		Use:   "show SESSION_ID",
		Short: "Print a session's turns and state path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ops, done, err := open()
			if err != nil {
				return err
			}
			defer done()
			return writeTranscript(cmd.OutOrStdout(), ops, args[0])
		},
	}

	cmd.AddCommand(list, show)
	return cmd
}

func writeSessions(out io.Writer, sessions []*persistence.Session) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tSTARTED\tSTATUS\tSTEPS")
	for _, s := range sessions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", s.SessionID, s.StartedAt.Format(time.RFC3339), s.Status, s.Steps)
	}
	return w.Flush()
}

func writeTranscript(out io.Writer, ops *persistence.DatabaseOperations, sessionID string) error {
	s, err := ops.GetSession(sessionID)
	if err != nil {
		return err
	}
	turns, err := ops.GetTurns(sessionID)
	if err != nil {
		return err
	}
	transitions, err := ops.GetTransitions(sessionID)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Session %s (%s, %d steps)\n", s.SessionID, s.Status, s.Steps)
	if s.Error != "" {
		fmt.Fprintf(out, "Error: %s\n", s.Error)
	}

	path := make([]string, 0, len(transitions)+1)
	if len(transitions) > 0 {
		path = append(path, transitions[0].FromState)
	}
	for _, t := range transitions {
		path = append(path, t.ToState)
	}
	fmt.Fprintf(out, "States: %s\n\n", strings.Join(path, " → "))

	for _, t := range turns {
		switch {
		case t.Operation != "" && t.Kind == "operation-request":
			fmt.Fprintf(out, "[%d] %s → %s(%s)\n", t.Seq, t.Author, t.Operation, t.ArgumentsJSON)
		case t.Operation != "":
			status := "ok"
			if t.IsError {
				status = "error"
			}
			fmt.Fprintf(out, "[%d] %s %s: %s\n", t.Seq, t.Operation, status, t.Content)
		default:
			fmt.Fprintf(out, "[%d] %s: %s\n", t.Seq, t.Author, t.Content)
		}
	}
	return nil
}
