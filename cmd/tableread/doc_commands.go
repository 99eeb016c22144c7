package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"tableread/internal/coordinator"
)

func newDocCommand(ctx *commandContext) *cobra.Command {
	docCmd := &cobra.Command{
		Use:   "doc",
		Short: "Read or replace the raw casting document",
	}

	docCmd.AddCommand(newDocGetCommand(ctx))
	docCmd.AddCommand(newDocSetCommand(ctx))

	return docCmd
}

func newDocGetCommand(ctx *commandContext) *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "get <session-id>",
		Short: "Print the casting document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStack(func(stack *syncStack) error {
				session, err := stack.coord.Session(cmd.Context(), args[0])
				if err != nil {
					return describeFailure(err)
				}
				text := session.DocumentText
				if !strings.HasSuffix(text, "\n") && text != "" {
					text += "\n"
				}
				return writeTextOutput(cmd, outputPath, text)
			})
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the document to a file instead of stdout")
	return cmd
}

func newDocSetCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <session-id> <file|->",
		Short: "Replace the casting document",
		Long: "Set replaces the whole casting document with the given file's contents\n" +
			"(- reads stdin). The text is committed as-is; a document that does not\n" +
			"parse is stored anyway and the assignment view degrades until it is fixed.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readTextInput(cmd, args[1])
			if err != nil {
				return err
			}
			return ctx.withStack(func(stack *syncStack) error {
				ticket, err := stack.coord.Submit(cmd.Context(), args[0], coordinator.ReplaceDocument(text))
				if err != nil {
					return describeFailure(err)
				}
				session, err := ticket.Wait(cmd.Context())
				if err != nil {
					return describeFailure(err)
				}
				progress := session.Progress()
				fmt.Fprintf(cmd.OutOrStdout(), "Document committed at version %d (%d/%d cast)\n",
					session.Version, progress.Assigned, progress.Total)
				return nil
			})
		},
	}
	return cmd
}

func newValidateCommand(ctx *commandContext) *cobra.Command {
	var filePath string

	cmd := &cobra.Command{
		Use:   "validate <session-id>",
		Short: "Validate a casting document against the session's characters",
		Long: "Validate checks the stored document, or a local candidate passed with\n" +
			"--file, without committing anything: parse problems, duplicate speakers,\n" +
			"entries that do not match the screenplay, and unknown library voices.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var text string
			if filePath != "" {
				var err error
				text, err = readTextInput(cmd, filePath)
				if err != nil {
					return err
				}
			}

			client, err := ctx.newClient()
			if err != nil {
				return err
			}
			report, err := client.ValidateDocument(cmd.Context(), args[0], text)
			if err != nil {
				return describeFailure(err)
			}

			out := cmd.OutOrStdout()
			for _, issue := range report.Issues() {
				fmt.Fprintf(out, "  - %s\n", issue)
			}
			fmt.Fprintln(out, report.Summary)
			if !report.Valid {
				return fmt.Errorf("document for session %s is not valid", args[0])
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&filePath, "file", "f", "", "Validate a local document instead of the stored one (- for stdin)")
	return cmd
}
