package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"tableread/internal/casting"
	"tableread/internal/coordinator"
)

func newAssignCommand(ctx *commandContext) *cobra.Command {
	var (
		provider     string
		voiceID      string
		castingNotes string
		role         string
		notes        []string
		configPairs  []string
	)

	cmd := &cobra.Command{
		Use:   "assign <session-id> <character>",
		Short: "Assign a voice or casting metadata to a character",
		Long: "Assign updates one character's entry in the casting document. Only the\n" +
			"flags you pass change; everything else is preserved. The edit is applied\n" +
			"optimistically and committed against the session version it was based on.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch, err := buildAssignmentPatch(cmd, provider, voiceID, castingNotes, role, notes, configPairs)
			if err != nil {
				return err
			}
			if patch.Empty() {
				return errors.New("nothing to change; pass at least one of --provider, --voice, --casting-notes, --role, --note, or --set")
			}

			return ctx.withStack(func(stack *syncStack) error {
				sessionID, speaker := args[0], args[1]
				ticket, err := stack.coord.Submit(cmd.Context(), sessionID, coordinator.PatchAssignment(speaker, patch))
				if err != nil {
					return describeFailure(err)
				}
				session, err := ticket.Wait(cmd.Context())
				if err != nil {
					return describeFailure(err)
				}

				assignment, _ := session.Assignment(speaker)
				out := cmd.OutOrStdout()
				if assignment.Cast() {
					fmt.Fprintf(out, "%s is cast: %s / %s (version %d)\n",
						speaker, assignment.Provider, assignment.VoiceIdentity(), session.Version)
				} else {
					fmt.Fprintf(out, "Updated %s (version %d); no voice selected yet\n", speaker, session.Version)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&provider, "provider", "p", "", "TTS provider identifier")
	cmd.Flags().StringVarP(&voiceID, "voice", "v", "", "Voice identifier (library or direct)")
	cmd.Flags().StringVar(&castingNotes, "casting-notes", "", "Casting notes for the character")
	cmd.Flags().StringVar(&role, "role", "", "Role description, e.g. protagonist")
	cmd.Flags().StringArrayVar(&notes, "note", nil, "Additional free-text note (repeatable; replaces existing notes)")
	cmd.Flags().StringArrayVar(&configPairs, "set", nil, "Provider config entry key=value (repeatable; replaces existing config)")
	return cmd
}

// buildAssignmentPatch maps only the flags that were actually passed into
// patch fields, so untouched metadata survives the commit.
func buildAssignmentPatch(cmd *cobra.Command, provider, voiceID, castingNotes, role string, notes, configPairs []string) (casting.AssignmentPatch, error) {
	var patch casting.AssignmentPatch
	flags := cmd.Flags()
	if flags.Changed("provider") {
		patch.Provider = &provider
	}
	if flags.Changed("voice") {
		patch.VoiceID = &voiceID
	}
	if flags.Changed("casting-notes") {
		patch.CastingNotes = &castingNotes
	}
	if flags.Changed("role") {
		patch.Role = &role
	}
	if flags.Changed("note") {
		patch.AdditionalNotes = notes
	}
	if flags.Changed("set") {
		config, err := parseConfigPairs(configPairs)
		if err != nil {
			return casting.AssignmentPatch{}, err
		}
		patch.Config = config
	}
	return patch, nil
}

func newClearVoiceCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear-voice <session-id> <character>",
		Short: "Remove a character's voice selection",
		Long: "Clear-voice removes the provider and voice identity from one character\n" +
			"while keeping casting notes, role, and line statistics intact.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStack(func(stack *syncStack) error {
				sessionID, speaker := args[0], args[1]
				ticket, err := stack.coord.Submit(cmd.Context(), sessionID, coordinator.ClearVoice(speaker))
				if err != nil {
					return describeFailure(err)
				}
				session, err := ticket.Wait(cmd.Context())
				if err != nil {
					return describeFailure(err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared voice for %s (version %d)\n", speaker, session.Version)
				return nil
			})
		},
	}
	return cmd
}
