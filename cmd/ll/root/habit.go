package root

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"lifeline/internal/engine"
	"lifeline/internal/ui"
)

func newHabitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "habit",
		Short: "Manage habits and their completion ledger",
	}

	cmd.AddCommand(
		newHabitAddCmd(),
		newHabitListCmd(),
		newHabitToggleCmd(),
		newHabitLogCmd(),
		newHabitRemoveCmd(),
		newHabitArchiveCmd(),
		newHabitStreakCmd(),
		newHabitDeleteCmd(),
	)

	return cmd
}

func idArg(args []string) (int64, error) {
	if len(args) < 1 {
		return 0, errors.New("id is required")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, errors.New("id must be an integer")
	}
	return id, nil
}

func dayFlag(dateStr string) (time.Time, error) {
	if dateStr == "" {
		return time.Now(), nil
	}
	return engine.ParseDay(dateStr)
}

func newHabitAddCmd() *cobra.Command {
	var area string
	var color string
	var freq string
	var daysPerWeek int
	var timesPerMonth int
	var days []int
	var quantitative bool
	var target string
	var unit string

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Create a habit",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return errors.New("title is required")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			svc, _, cleanup, err := openService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			in := engine.CreateHabitInput{
				Title: args[0],
				Color: color,
				Frequency: engine.FrequencyPolicy{
					Type:          engine.FrequencyType(freq),
					DaysPerWeek:   daysPerWeek,
					Days:          days,
					TimesPerMonth: timesPerMonth,
				},
			}
			if area != "" {
				in.Area = &area
			}
			if quantitative {
				t, err := decimal.NewFromString(target)
				if err != nil {
					return fmt.Errorf("invalid target %q: %w", target, err)
				}
				in.Tracking = engine.TrackingPolicy{Kind: engine.TrackingQuantitative, Target: t, Unit: unit}
			} else {
				in.Tracking = engine.TrackingPolicy{Kind: engine.TrackingBoolean}
			}

			h, err := svc.CreateHabit(ctx, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Created habit %d: %s\n", ui.IconSparkle, h.ID, h.Title)
			return nil
		},
	}

	cmd.Flags().StringVarP(&area, "area", "a", "", "Life area (health, work, …)")
	cmd.Flags().StringVar(&color, "color", "", "Display color")
	cmd.Flags().StringVarP(&freq, "freq", "f", "daily", "Frequency (daily|times_per_week|specific_days|times_per_month)")
	cmd.Flags().IntVar(&daysPerWeek, "days-per-week", 0, "Target days per week (times_per_week)")
	cmd.Flags().IntVar(&timesPerMonth, "times-per-month", 0, "Target times per month (times_per_month)")
	cmd.Flags().IntSliceVar(&days, "days", nil, "Weekdays 0=Sun..6=Sat (specific_days)")
	cmd.Flags().BoolVarP(&quantitative, "quantitative", "q", false, "Track a numeric value instead of done/not-done")
	cmd.Flags().StringVar(&target, "target", "1", "Daily target value (quantitative)")
	cmd.Flags().StringVar(&unit, "unit", "", "Unit label, e.g. ml or pages (quantitative)")

	return cmd
}

func newHabitListCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List habits with streaks",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			svc, _, cleanup, err := openService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			habits, err := svc.ListHabits(ctx, all)
			if err != nil {
				return err
			}
			if len(habits) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), ui.Muted.Render("(no habits)"))
				return nil
			}
			for _, h := range habits {
				sr, err := svc.StatsRepo().GetStreak(ctx, h.ID)
				if err != nil {
					return err
				}
				cur, best := 0, 0
				if sr != nil {
					cur, best = sr.Current, sr.Longest
				}
				line := fmt.Sprintf("%d  %s", h.ID, h.Title)
				if h.TrackKind == string(engine.TrackingQuantitative) && h.Target != nil {
					u := ""
					if h.Unit != nil {
						u = " " + *h.Unit
					}
					line += ui.Muted.Render(fmt.Sprintf(" (target %s%s)", h.Target.String(), u))
				}
				line += fmt.Sprintf("  %s %d", ui.IconFlame, cur)
				if best > cur {
					line += ui.Muted.Render(fmt.Sprintf(" (best %d)", best))
				}
				if h.ArchivedAt != nil {
					line += " " + ui.Warn.Render("[archived]")
				}
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Include archived habits")

	return cmd
}

func newHabitToggleCmd() *cobra.Command {
	var dateStr string

	cmd := &cobra.Command{
		Use:   "toggle <id>",
		Short: "Toggle a habit's completion for a day",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := idArg(args)
			if err != nil {
				return err
			}
			day, err := dayFlag(dateStr)
			if err != nil {
				return err
			}

			ctx := context.Background()
			svc, _, cleanup, err := openService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			res, err := svc.Toggle(ctx, id, day)
			if err != nil {
				return err
			}
			printToggle(cmd, res, engine.FormatDay(day))
			return nil
		},
	}

	cmd.Flags().StringVarP(&dateStr, "date", "d", "", "Day to toggle (YYYY-MM-DD, default today)")

	return cmd
}

func newHabitLogCmd() *cobra.Command {
	var dateStr string

	cmd := &cobra.Command{
		Use:   "log <id> <value>",
		Short: "Record a measured value for a day",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := idArg(args)
			if err != nil {
				return err
			}
			value, err := decimal.NewFromString(args[1])
			if err != nil {
				return fmt.Errorf("invalid value %q: %w", args[1], err)
			}
			day, err := dayFlag(dateStr)
			if err != nil {
				return err
			}

			ctx := context.Background()
			svc, _, cleanup, err := openService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			res, err := svc.SetValue(ctx, id, day, value)
			if err != nil {
				return err
			}
			printToggle(cmd, res, engine.FormatDay(day))
			return nil
		},
	}

	cmd.Flags().StringVarP(&dateStr, "date", "d", "", "Day to record (YYYY-MM-DD, default today)")

	return cmd
}

func newHabitRemoveCmd() *cobra.Command {
	var dateStr string

	cmd := &cobra.Command{
		Use:   "uncheck <id>",
		Short: "Remove a day's completion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := idArg(args)
			if err != nil {
				return err
			}
			day, err := dayFlag(dateStr)
			if err != nil {
				return err
			}

			ctx := context.Background()
			svc, _, cleanup, err := openService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := svc.Remove(ctx, id, day); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed completion for %s.\n", engine.FormatDay(day))
			return nil
		},
	}

	cmd.Flags().StringVarP(&dateStr, "date", "d", "", "Day to clear (YYYY-MM-DD, default today)")

	return cmd
}

func newHabitArchiveCmd() *cobra.Command {
	var restore bool

	cmd := &cobra.Command{
		Use:   "archive <id>",
		Short: "Archive a habit (or restore with --restore)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := idArg(args)
			if err != nil {
				return err
			}

			ctx := context.Background()
			svc, _, cleanup, err := openService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			if restore {
				if err := svc.UnarchiveHabit(ctx, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Habit %d restored.\n", id)
				return nil
			}
			if err := svc.ArchiveHabit(ctx, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Habit %d archived. History and streaks are kept.\n", id)
			return nil
		},
	}

	cmd.Flags().BoolVar(&restore, "restore", false, "Un-archive instead")

	return cmd
}

func newHabitStreakCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "streak <id>",
		Short: "Show a habit's current and longest streak",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := idArg(args)
			if err != nil {
				return err
			}

			ctx := context.Background()
			svc, _, cleanup, err := openService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			sr, err := svc.Streak(ctx, id)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ui.LabelValue("Current", fmt.Sprintf("%d %s", sr.Current, ui.IconFlame)))
			fmt.Fprintln(cmd.OutOrStdout(), ui.LabelValue("Longest", sr.Longest))
			if sr.LastCompleted != nil {
				fmt.Fprintln(cmd.OutOrStdout(), ui.LabelValue("Last completed", *sr.LastCompleted))
			}
			return nil
		},
	}
}

func newHabitDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a habit and its history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := idArg(args)
			if err != nil {
				return err
			}

			ctx := context.Background()
			svc, _, cleanup, err := openService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := svc.DeleteHabit(ctx, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Habit %d deleted.\n", id)
			return nil
		},
	}
}

func printToggle(cmd *cobra.Command, res *engine.ToggleResult, day string) {
	out := cmd.OutOrStdout()
	if res.Added {
		fmt.Fprintf(out, "%s Completed for %s", ui.IconDone, day)
		if res.Completion != nil && res.Completion.Value.Cmp(decimal.NewFromInt(1)) != 0 {
			fmt.Fprintf(out, " (value %s)", res.Completion.Value.String())
		}
		fmt.Fprintln(out)
	} else {
		fmt.Fprintf(out, "Unchecked for %s.\n", day)
	}
	if res.Streak != nil {
		fmt.Fprintf(out, "%s Streak: %d (best %d)\n", ui.IconFlame, res.Streak.Current, res.Streak.Longest)
	}
	for _, u := range res.Unlocked {
		fmt.Fprintln(out, ui.Gold.Render(ui.IconTrophy+" Unlocked: "+u))
	}
}
