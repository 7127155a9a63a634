package root

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"lifeline/internal/engine"
	"lifeline/internal/ui"
)

func newTaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks, subtasks and recurrence",
	}

	cmd.AddCommand(
		newTaskAddCmd(),
		newTaskListCmd(),
		newTaskStartCmd(),
		newTaskDoneCmd(),
		newTaskReopenCmd(),
		newTaskReorderCmd(),
		newTaskSubCmd(),
		newTaskDeleteCmd(),
	)

	return cmd
}

func newTaskAddCmd() *cobra.Command {
	var description string
	var project string
	var area string
	var notebook string
	var dueStr string
	var priority int
	var tags []string
	var recurType string
	var recurEvery int
	var recurUntil string

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Create a task",
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

			in := engine.CreateTaskInput{
				Title:    args[0],
				Priority: priority,
				Tags:     tags,
			}
			if description != "" {
				in.Description = &description
			}
			if project != "" {
				in.Project = &project
			}
			if area != "" {
				in.Area = &area
			}
			if notebook != "" {
				in.Notebook = &notebook
			}
			if dueStr != "" {
				due, err := engine.ParseDay(dueStr)
				if err != nil {
					return err
				}
				in.DueDate = &due
			}
			if recurType != "" {
				rt, err := engine.ParseRecurrenceType(recurType)
				if err != nil {
					return err
				}
				rec := engine.Recurrence{Type: rt, Interval: recurEvery}
				if recurUntil != "" {
					until, err := engine.ParseDay(recurUntil)
					if err != nil {
						return err
					}
					rec.Until = &until
				}
				in.Recurrence = &rec
			}

			t, err := svc.CreateTask(ctx, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Created task %d: %s\n", ui.IconTask, t.ID, t.Title)
			return nil
		},
	}

	cmd.Flags().StringVar(&description, "desc", "", "Description")
	cmd.Flags().StringVarP(&project, "project", "p", "", "Project name")
	cmd.Flags().StringVarP(&area, "area", "a", "", "Life area")
	cmd.Flags().StringVar(&notebook, "notebook", "", "Notebook this task belongs to")
	cmd.Flags().StringVarP(&dueStr, "due", "d", "", "Due date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&priority, "priority", 0, "Priority (higher sorts first)")
	cmd.Flags().StringSliceVarP(&tags, "tag", "t", nil, "Tags (repeatable)")
	cmd.Flags().StringVarP(&recurType, "recur", "r", "", "Recurrence (daily|weekly|monthly|yearly)")
	cmd.Flags().IntVar(&recurEvery, "every", 1, "Recurrence interval")
	cmd.Flags().StringVar(&recurUntil, "until", "", "Stop recurring after this date (YYYY-MM-DD)")

	return cmd
}

func newTaskListCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks in board order",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			svc, _, cleanup, err := openService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			tasks, err := svc.ListTasks(ctx)
			if err != nil {
				return err
			}
			shown := 0
			for _, t := range tasks {
				if !all && t.Status == engine.StatusDone {
					continue
				}
				shown++
				line := fmt.Sprintf("%d  %s  %s", t.ID, t.Title, ui.StatusText(t.Status))
				if t.DueDate != nil {
					line += ui.Muted.Render("  due " + *t.DueDate)
				}
				if t.RecurType != nil {
					line += "  " + ui.IconLoop
				}
				if len(t.Tags) > 0 {
					line += ui.Muted.Render(fmt.Sprintf("  %v", t.Tags))
				}
				fmt.Fprintln(cmd.OutOrStdout(), line)

				subs, err := svc.Subtasks(ctx, t.ID)
				if err != nil {
					return err
				}
				for _, st := range subs {
					mark := "[ ]"
					if st.Done {
						mark = "[x]"
					}
					fmt.Fprintf(cmd.OutOrStdout(), "   %s %d %s\n", mark, st.ID, st.Title)
				}
			}
			if shown == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), ui.Muted.Render("(no open tasks)"))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Include completed tasks")

	return cmd
}

func newTaskStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start <id>",
		Short: "Mark a task in progress",
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

			if err := svc.StartTask(ctx, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Task %d is in progress.\n", id)
			return nil
		},
	}
}

func newTaskDoneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "done <id>",
		Short: "Complete a task",
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

			res, err := svc.CompleteTask(ctx, id)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s Task %d done: +%d XP\n", ui.IconDone, res.TaskID, res.XPAwarded)
			if res.LevelUp {
				fmt.Fprintf(out, "%s %s → level %d\n", ui.IconSparkle, ui.BadgeLevelUp, res.LevelAfter)
			}
			for _, u := range res.Unlocked {
				fmt.Fprintln(out, ui.Gold.Render(ui.IconTrophy+" Unlocked: "+u))
			}
			if res.NextTaskID != nil {
				fmt.Fprintf(out, "%s Next occurrence %d due %s\n", ui.IconLoop, *res.NextTaskID, *res.NextDue)
			}
			return nil
		},
	}
}

func newTaskReopenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "undo <id>",
		Short: "Reopen a completed task",
		Long:  "Reopen moves a done task back to pending. XP already awarded and recurrence instances already created are kept.",
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

			if err := svc.ReopenTask(ctx, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Task %d reopened.\n", id)
			return nil
		},
	}
}

func newTaskReorderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reorder <id> [id...]",
		Short: "Reorder tasks to the given sequence",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, a := range args {
				id, err := strconv.ParseInt(a, 10, 64)
				if err != nil {
					return fmt.Errorf("id %q must be an integer", a)
				}
				ids = append(ids, id)
			}

			ctx := context.Background()
			svc, _, cleanup, err := openService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			err = svc.Reorder(ctx, ids)
			var bulk *engine.BulkError
			if errors.As(err, &bulk) {
				fmt.Fprintln(cmd.OutOrStdout(), ui.Warn.Render(ui.IconWarn+" Partially applied:"))
				for _, id := range bulk.FailedIDs() {
					fmt.Fprintf(cmd.OutOrStdout(), "- %d: %v\n", id, bulk.Failed[id])
				}
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Reordered.")
			return nil
		},
	}
}

func newTaskSubCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sub",
		Short: "Manage subtasks",
	}

	add := &cobra.Command{
		Use:   "add <task-id> <title>",
		Short: "Add a subtask",
		Args:  cobra.ExactArgs(2),
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

			st, err := svc.AddSubtask(ctx, id, args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added subtask %d: %s\n", st.ID, st.Title)
			return nil
		},
	}

	toggle := &cobra.Command{
		Use:   "toggle <subtask-id>",
		Short: "Toggle a subtask done/undone",
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

			st, err := svc.ToggleSubtask(ctx, id)
			if err != nil {
				return err
			}
			state := "open"
			if st.Done {
				state = "done"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Subtask %d is %s.\n", st.ID, state)
			return nil
		},
	}

	cmd.AddCommand(add, toggle)
	return cmd
}

func newTaskDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a task",
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

			if err := svc.DeleteTask(ctx, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Task %d deleted.\n", id)
			return nil
		},
	}
}
