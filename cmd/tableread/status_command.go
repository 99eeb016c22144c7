package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"tableread/internal/casting"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status <session-id>",
		Short: "Show casting progress for a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStack(func(stack *syncStack) error {
				session, err := stack.coord.Session(cmd.Context(), args[0])
				if err != nil {
					return describeFailure(err)
				}
				if asJSON {
					return writeJSON(cmd, statusView(cmd.Context(), stack, session))
				}
				renderStatus(cmd, stack, session)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit machine-readable JSON")
	return cmd
}

type characterStatus struct {
	Name      string `json:"name"`
	LineCount int    `json:"line_count"`
	Provider  string `json:"provider,omitempty"`
	VoiceID   string `json:"voice_id,omitempty"`
	VoiceName string `json:"voice_name,omitempty"`
	Role      string `json:"role,omitempty"`
	Cast      bool   `json:"cast"`
}

type sessionStatus struct {
	SessionID  string            `json:"session_id"`
	Title      string            `json:"title"`
	Version    int64             `json:"version"`
	Assigned   int               `json:"assigned"`
	Total      int               `json:"total"`
	Percent    int               `json:"percent"`
	Characters []characterStatus `json:"characters"`
}

func statusView(ctx context.Context, stack *syncStack, session *casting.Session) sessionStatus {
	progress := session.Progress()
	view := sessionStatus{
		SessionID: session.ID,
		Title:     session.Title,
		Version:   session.Version,
		Assigned:  progress.Assigned,
		Total:     progress.Total,
		Percent:   progress.Percent,
	}
	for _, character := range sortedCharacters(session) {
		assignment, _ := session.Assignment(character.Name)
		view.Characters = append(view.Characters, characterStatus{
			Name:      character.Name,
			LineCount: character.LineCount,
			Provider:  assignment.Provider,
			VoiceID:   assignment.VoiceIdentity(),
			VoiceName: resolveDisplayName(ctx, stack, session.ID, assignment),
			Role:      assignment.Role,
			Cast:      assignment.Cast(),
		})
	}
	return view
}

// resolveDisplayName looks the assignment's voice up in the library through
// the resolution cache. Direct voice identifiers that are not cataloged are
// legitimate; they simply have no display name.
func resolveDisplayName(ctx context.Context, stack *syncStack, sessionID string, assignment casting.Assignment) string {
	voiceID := assignment.VoiceIdentity()
	if assignment.Provider == "" || voiceID == "" {
		return ""
	}
	voice, err := stack.voices.Resolve(ctx, sessionID, assignment.Provider, voiceID)
	if err != nil {
		return ""
	}
	return voice.DisplayName
}

func renderStatus(cmd *cobra.Command, stack *syncStack, session *casting.Session) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	view := statusView(cmd.Context(), stack, session)

	title := session.Title
	if title == "" {
		title = session.ID
	}
	fmt.Fprintln(out, renderSectionHeader("Casting: "+title, colorize))
	fmt.Fprintf(out, "Session %s, version %d\n", session.ID, session.Version)
	fmt.Fprintln(out, renderProgressLine(session.Progress(), colorize))
	fmt.Fprintln(out)

	rows := make([][]string, 0, len(view.Characters))
	for _, character := range view.Characters {
		voice := character.VoiceID
		if character.VoiceName != "" {
			voice = fmt.Sprintf("%s (%s)", character.VoiceName, character.VoiceID)
		}
		state := "pending"
		if character.Cast {
			state = "cast"
		}
		rows = append(rows, []string{
			character.Name,
			strconv.Itoa(character.LineCount),
			dashIfEmpty(character.Provider),
			dashIfEmpty(voice),
			dashIfEmpty(truncate(character.Role, 24)),
			state,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Character", "Lines", "Provider", "Voice", "Role", "State"},
		rows, 1))
}
