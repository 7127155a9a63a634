package root

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"lifeline/internal/ui"
)

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show level, XP and lifetime counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			svc, _, cleanup, err := openService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			stats, err := svc.Stats(ctx)
			if err != nil {
				return err
			}
			next, remaining := svc.XPToNextLevel(stats)

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, ui.Heading(ui.IconSparkle, "Progress"))
			fmt.Fprintln(out, ui.LabelValue("Level", stats.Level))
			fmt.Fprintln(out, ui.LabelValue("Total XP", fmt.Sprintf("%d (next level at %d, %d to go)", stats.XPTotal, next, remaining)))
			fmt.Fprintln(out, "")
			fmt.Fprintln(out, ui.H2.Render("Lifetime"))
			fmt.Fprintln(out, ui.LabelValue("Habits completed", stats.HabitsCompleted))
			fmt.Fprintln(out, ui.LabelValue("Tasks completed", stats.TasksCompleted))
			fmt.Fprintln(out, ui.LabelValue("Streak", fmt.Sprintf("%d %s (best %d)", stats.CurrentStreak, ui.IconFlame, stats.LongestStreak)))
			fmt.Fprintln(out, "")

			unlocks, err := svc.Achievements(ctx)
			if err != nil {
				return err
			}
			unlocked := make(map[string]bool, len(unlocks))
			for _, u := range unlocks {
				unlocked[u.Type] = true
			}

			fmt.Fprintln(out, ui.H2.Render(ui.IconTrophy+" Achievements"))
			for _, r := range svc.Rules() {
				if unlocked[r.Type] {
					fmt.Fprintf(out, "- %s %s\n", ui.Good.Render("✓"), r.Type)
				} else {
					fmt.Fprintf(out, "- %s\n", ui.Muted.Render(fmt.Sprintf("%s (%s ≥ %d)", r.Type, r.Requirement, r.Target)))
				}
			}
			return nil
		},
	}

	return cmd
}
