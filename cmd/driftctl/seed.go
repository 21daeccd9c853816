package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"driftwatch/internal/app"
	"driftwatch/internal/backend"
	"driftwatch/internal/repository"
)

func seedCmd(g *globalFlags) *cobra.Command {
	var (
		runs     int
		interval time.Duration
		models   []string
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Fill the store with a synthetic history of persona batteries",
		Long: `Seed runs deterministic persona models through the catalog several
times, spacing the batteries in simulated time so the dashboard has trends,
stance changes and anomalies to show. Nothing is sent to a real vendor.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if runs < 1 {
				return fmt.Errorf("--runs must be at least 1, got %d", runs)
			}
			if interval <= 0 {
				return fmt.Errorf("--interval must be positive, got %s", interval)
			}
			if len(models) == 0 {
				return fmt.Errorf("--models must name at least one model")
			}

			ctx := cmd.Context()
			return g.withApp(ctx, func(a *app.App) error {
				personas := backend.NewRegistry()
				for _, name := range models {
					personas.Register(backend.NewPersona(name))
				}

				// batteries run one after another, so the clock only moves
				// while no prompt goroutine reads it
				clock := time.Now().UTC().Add(-time.Duration(runs) * interval)
				now := func() time.Time { return clock }
				a.Detector.SetClock(now)
				orch := a.NewOrchestrator(personas)
				orch.SetClock(now)

				for i := range runs {
					sessions, err := orch.RunAll(ctx)
					if err != nil {
						return err
					}
					for _, s := range sessions {
						a.Log.Info("seeded battery",
							zap.Int("run", i+1),
							zap.String("model", s.ModelName),
							zap.String("status", string(s.Status)),
							zap.Time("at", clock))
					}
					clock = clock.Add(interval)
				}

				changes, err := a.Store.Changes(ctx, repository.ChangeFilter{})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "seeded %d batteries for %d models, %d stance changes recorded\n",
					runs, len(models), len(changes))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&runs, "runs", "n", 6, "Batteries per model")
	cmd.Flags().DurationVar(&interval, "interval", 24*time.Hour, "Simulated time between batteries")
	cmd.Flags().StringSliceVar(&models, "models", []string{"persona-a", "persona-b", "persona-c"}, "Persona model names")
	return cmd
}
