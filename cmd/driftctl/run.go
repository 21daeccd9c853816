package main

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"driftwatch/internal/app"
	"driftwatch/internal/model"
)

func runCmd(g *globalFlags) *cobra.Command {
	var (
		modelName string
		all       bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the dilemma battery against one or all models",
		Long: `Run sends every catalog prompt to the selected models, scores the
answers and records stance changes. Interrupting the command cancels the
running sessions and prints what was completed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (modelName != "") {
				return errors.New("exactly one of --model or --all is required")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return g.withApp(ctx, func(a *app.App) error {
				var sessions []*model.TestSession
				if all {
					var err error
					if sessions, err = a.Orchestrator.RunAll(ctx); err != nil {
						return err
					}
				} else {
					session, err := a.Orchestrator.Run(ctx, modelName)
					if err != nil {
						return err
					}
					sessions = append(sessions, session)
				}
				if err := printJSON(cmd.OutOrStdout(), sessions); err != nil {
					return err
				}
				return failedSessions(sessions)
			})
		},
	}

	cmd.Flags().StringVarP(&modelName, "model", "m", "", "Model to test")
	cmd.Flags().BoolVar(&all, "all", false, "Test every configured model")
	return cmd
}

var errSessionFailed = errors.New("one or more sessions failed")

// failedSessions turns a fully failed session into a non-zero exit
func failedSessions(sessions []*model.TestSession) error {
	for _, s := range sessions {
		if s.Status == model.SessionFailed {
			return errSessionFailed
		}
	}
	return nil
}
