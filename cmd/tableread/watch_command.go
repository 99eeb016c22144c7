package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"tableread/internal/remote"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <session-id>",
		Short: "Follow casting progress as commits land",
		Long: "Watch subscribes to the server's commit feed and reprints the session's\n" +
			"progress whenever a collaborator commits a change. Interrupt to stop.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStack(func(stack *syncStack) error {
				sessionID := args[0]
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)

				session, err := stack.coord.Session(cmd.Context(), sessionID)
				if err != nil {
					return describeFailure(err)
				}
				fmt.Fprintf(out, "v%-4d %s\n", session.Version, renderProgressLine(session.Progress(), colorize))

				events, err := stack.client.Watch(cmd.Context())
				if err != nil {
					return describeFailure(err)
				}

				lastVersion := session.Version
				for event := range events {
					if event.SessionID != sessionID {
						continue
					}
					if event.Kind == remote.EventDeleted {
						fmt.Fprintln(out, "Session was deleted; stopping.")
						return nil
					}
					snapshot, err := stack.coord.Refresh(cmd.Context(), sessionID)
					if err != nil {
						if errors.Is(err, context.Canceled) {
							return err
						}
						fmt.Fprintf(out, "refresh failed: %v\n", describeFailure(err))
						continue
					}
					if snapshot.Version == lastVersion {
						continue
					}
					lastVersion = snapshot.Version
					fmt.Fprintf(out, "v%-4d %s\n", snapshot.Version, renderProgressLine(snapshot.Progress(), colorize))
				}
				return cmd.Context().Err()
			})
		},
	}
	return cmd
}
