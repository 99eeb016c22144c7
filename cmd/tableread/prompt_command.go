package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"tableread/internal/casting"
	"tableread/internal/prompts"
)

func newPromptCommand(ctx *commandContext) *cobra.Command {
	promptCmd := &cobra.Command{
		Use:   "prompt",
		Short: "Generate LLM prompts that assist with casting",
	}

	promptCmd.AddCommand(newPromptNotesCommand(ctx))
	promptCmd.AddCommand(newPromptVoicesCommand(ctx))

	return promptCmd
}

func newPromptNotesCommand(ctx *commandContext) *cobra.Command {
	var screenplayPath string
	var outputPath string

	cmd := &cobra.Command{
		Use:   "notes <session-id>",
		Short: "Build a prompt asking an LLM to write casting notes",
		Long: "Notes combines the casting document with the screenplay text into a\n" +
			"prompt asking an LLM to annotate every speaker with casting notes and a\n" +
			"role. Paste the answer back with `tableread doc set`.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			screenplayText, err := readTextInput(cmd, screenplayPath)
			if err != nil {
				return err
			}

			return ctx.withStack(func(stack *syncStack) error {
				session, err := stack.coord.Session(cmd.Context(), args[0])
				if err != nil {
					return describeFailure(err)
				}
				prompt, err := prompts.CharacterNotes(prompts.NotesInput{
					DocumentText:   session.DocumentText,
					ScreenplayText: screenplayText,
					TemplatePath:   cfg.Prompts.NotesTemplatePath,
				})
				if err != nil {
					return err
				}
				if err := writeTextOutput(cmd, outputPath, prompt); err != nil {
					return err
				}
				if cfg.Prompts.IncludePrivacyNotice && outputPath != "" {
					fmt.Fprintln(cmd.OutOrStdout(), prompts.NotesPrivacyNotice(filepath.Base(screenplayPath)))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&screenplayPath, "screenplay", "s", "", "Screenplay text file to embed (- for stdin)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the prompt to a file instead of stdout")
	_ = cmd.MarkFlagRequired("screenplay")
	return cmd
}

func newPromptVoicesCommand(ctx *commandContext) *cobra.Command {
	var providers []string
	var outputPath string

	cmd := &cobra.Command{
		Use:   "voices <session-id>",
		Short: "Build a prompt asking an LLM to pick library voices",
		Long: "Voices combines the casting document with the selected provider\n" +
			"catalogs into a prompt asking an LLM to choose a voice for every uncast\n" +
			"speaker. Defaults to every provider in the library.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return ctx.withStack(func(stack *syncStack) error {
				session, err := stack.coord.Session(cmd.Context(), args[0])
				if err != nil {
					return describeFailure(err)
				}

				selected := providers
				if len(selected) == 0 {
					selected, err = stack.client.ListProviders(cmd.Context())
					if err != nil {
						return describeFailure(err)
					}
				}

				catalogs := make(map[string][]casting.LibraryVoice, len(selected))
				for _, provider := range selected {
					voices, err := stack.client.ListLibraryVoices(cmd.Context(), provider)
					if err != nil {
						return describeFailure(err)
					}
					catalogs[provider] = voices
				}

				prompt, err := prompts.VoiceLibrary(prompts.VoicesInput{
					DocumentText: session.DocumentText,
					Providers:    selected,
					Catalogs:     catalogs,
					TemplatePath: cfg.Prompts.VoicesTemplatePath,
				})
				if err != nil {
					return err
				}
				if err := writeTextOutput(cmd, outputPath, prompt); err != nil {
					return err
				}
				if cfg.Prompts.IncludePrivacyNotice && outputPath != "" {
					fmt.Fprintln(cmd.OutOrStdout(), prompts.VoicesPrivacyNotice(selected))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringArrayVarP(&providers, "provider", "p", nil, "Provider catalog to include (repeatable)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the prompt to a file instead of stdout")
	return cmd
}
