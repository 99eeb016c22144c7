package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"tableread/internal/remote"
)

func newVoicesCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "voices [provider]",
		Short: "List voice library providers or one provider's catalog",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.newClient()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if len(args) == 0 {
				providers, err := client.ListProviders(cmd.Context())
				if err != nil {
					return describeFailure(err)
				}
				if asJSON {
					return writeJSON(cmd, providers)
				}
				if len(providers) == 0 {
					fmt.Fprintln(out, "No provider catalogs found in the voice library.")
					return nil
				}
				for _, provider := range providers {
					fmt.Fprintln(out, provider)
				}
				return nil
			}

			provider := args[0]
			voices, err := client.ListLibraryVoices(cmd.Context(), provider)
			if err != nil {
				return describeFailure(err)
			}
			if asJSON {
				payloads := make([]remote.LibraryVoicePayload, 0, len(voices))
				for _, voice := range voices {
					payloads = append(payloads, remote.VoicePayloadFrom(voice))
				}
				return writeJSON(cmd, payloads)
			}
			if len(voices) == 0 {
				fmt.Fprintf(out, "Provider %s has no cataloged voices.\n", provider)
				return nil
			}

			rows := make([][]string, 0, len(voices))
			for _, voice := range voices {
				rows = append(rows, []string{
					voice.ID,
					dashIfEmpty(voice.DisplayName),
					dashIfEmpty(strings.Join(voice.Tags, ", ")),
					dashIfEmpty(truncate(voice.Description, 48)),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Name", "Tags", "Description"},
				rows))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit machine-readable JSON")
	return cmd
}

func newCharactersCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "characters <screenplay.json>",
		Short: "Extract speakers and line statistics from a screenplay",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.newClient()
			if err != nil {
				return err
			}
			characters, err := client.ExtractCharacters(cmd.Context(), args[0])
			if err != nil {
				return describeFailure(err)
			}
			if asJSON {
				payloads := make([]remote.CharacterPayload, 0, len(characters))
				for _, character := range characters {
					payloads = append(payloads, remote.CharacterPayload(character))
				}
				return writeJSON(cmd, payloads)
			}

			rows := make([][]string, 0, len(characters))
			for _, character := range characters {
				rows = append(rows, []string{
					character.Name,
					strconv.Itoa(character.LineCount),
					strconv.Itoa(character.TotalCharacters),
					strconv.Itoa(character.LongestDialogue),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Character", "Lines", "Characters", "Longest"},
				rows, 1, 2, 3))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit machine-readable JSON")
	return cmd
}
