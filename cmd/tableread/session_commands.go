package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"tableread/internal/casting"
	"tableread/internal/remote"
)

func newSessionCommand(ctx *commandContext) *cobra.Command {
	sessionCmd := &cobra.Command{
		Use:   "session",
		Short: "Manage casting sessions",
	}

	sessionCmd.AddCommand(newSessionNewCommand(ctx))
	sessionCmd.AddCommand(newSessionListCommand(ctx))
	sessionCmd.AddCommand(newSessionShowCommand(ctx))
	sessionCmd.AddCommand(newSessionDeleteCommand(ctx))

	return sessionCmd
}

func newSessionNewCommand(ctx *commandContext) *cobra.Command {
	var title string

	cmd := &cobra.Command{
		Use:   "new <screenplay.json>",
		Short: "Start a casting session from a parsed screenplay",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.newClient()
			if err != nil {
				return err
			}
			session, err := client.CreateSession(cmd.Context(), remote.NewSession{
				Title:      title,
				SourcePath: args[0],
			})
			if err != nil {
				return describeFailure(err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Created session %s (%q)\n", session.ID, session.Title)
			fmt.Fprintf(out, "Extracted %d characters from %s\n", len(session.Characters), session.SourcePath)
			fmt.Fprintf(out, "Next: `tableread status %s` to see the cast list\n", session.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "Session title (defaults to the screenplay name)")
	return cmd
}

func newSessionListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List casting sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.newClient()
			if err != nil {
				return err
			}
			summaries, err := client.ListSessions(cmd.Context())
			if err != nil {
				return describeFailure(err)
			}
			if asJSON {
				payloads := make([]remote.SessionSummaryPayload, 0, len(summaries))
				for _, summary := range summaries {
					payloads = append(payloads, remote.SummaryPayloadFrom(summary))
				}
				return writeJSON(cmd, payloads)
			}

			out := cmd.OutOrStdout()
			if len(summaries) == 0 {
				fmt.Fprintln(out, "No sessions yet. Create one with `tableread session new <screenplay.json>`.")
				return nil
			}

			rows := make([][]string, 0, len(summaries))
			for _, summary := range summaries {
				rows = append(rows, []string{
					summary.ID,
					truncate(dashIfEmpty(summary.Title), 40),
					fmt.Sprintf("%d/%d (%d%%)", summary.Progress.Assigned, summary.Progress.Total, summary.Progress.Percent),
					strconv.FormatInt(summary.Version, 10),
					formatWhen(summary.UpdatedAt),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Title", "Cast", "Version", "Updated"},
				rows, 2, 3))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit machine-readable JSON")
	return cmd
}

func newSessionShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show one session in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStack(func(stack *syncStack) error {
				session, err := stack.coord.Session(cmd.Context(), args[0])
				if err != nil {
					return describeFailure(err)
				}
				if asJSON {
					return writeJSON(cmd, remote.SessionPayloadFrom(session))
				}

				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				fmt.Fprintln(out, renderSectionHeader("Session "+session.ID, colorize))
				fmt.Fprintf(out, "Title:      %s\n", dashIfEmpty(session.Title))
				fmt.Fprintf(out, "Screenplay: %s\n", dashIfEmpty(session.SourcePath))
				fmt.Fprintf(out, "Version:    %d\n", session.Version)
				fmt.Fprintf(out, "Updated:    %s\n", formatWhen(session.UpdatedAt))
				fmt.Fprintf(out, "Progress:   %s\n", renderProgressLine(session.Progress(), colorize))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit machine-readable JSON")
	return cmd
}

func newSessionDeleteCommand(ctx *commandContext) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a casting session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("deleting a session discards its casting document; rerun with --yes to confirm")
			}
			return ctx.withStack(func(stack *syncStack) error {
				if err := stack.coord.Delete(cmd.Context(), args[0]); err != nil {
					return describeFailure(err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted session %s\n", args[0])
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the deletion")
	return cmd
}

// sortedCharacters returns the session's characters in display order without
// mutating the snapshot.
func sortedCharacters(session *casting.Session) []casting.CharacterInfo {
	characters := append([]casting.CharacterInfo(nil), session.Characters...)
	casting.SortCharacters(characters)
	return characters
}
