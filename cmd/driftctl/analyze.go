package main

import (
	"io"
	"strings"

	"github.com/spf13/cobra"

	"driftwatch/internal/service"
)

func analyzeCmd(g *globalFlags) *cobra.Command {
	var (
		lexiconPath string
		top         int
	)

	cmd := &cobra.Command{
		Use:   "analyze [text...]",
		Short: "Score a response the way the engine would",
		Long: `Analyze prints the stance, sentiment, certainty and keywords of the
given text. With no arguments, or a single "-", the text is read from stdin.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if len(args) == 0 || text == "-" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				text = string(data)
			}

			var lex *service.Lexicon
			if lexiconPath != "" {
				var err error
				if lex, err = service.LoadLexicon(lexiconPath); err != nil {
					return err
				}
			}

			analysis, err := service.NewAnalyzerService(lex, top).Analyze(text)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), analysis)
		},
	}

	cmd.Flags().StringVar(&lexiconPath, "lexicon", "", "YAML lexicon replacing the built-in word lists")
	cmd.Flags().IntVar(&top, "top", 5, "Number of keywords to extract")
	return cmd
}
