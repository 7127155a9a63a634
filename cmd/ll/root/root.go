package root

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"lifeline/internal/ui"
)

const Version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:           "ll",
	Short:         "Lifeline — local-first habit, task and progress tracker",
	Long:          "Lifeline tracks habits, tasks and streaks in a local SQLite file and turns consistency into XP, levels and achievements.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("{{.Name}} v{{.Version}}\n")

	rootCmd.AddCommand(
		newHabitCmd(),
		newTaskCmd(),
		newStatsCmd(),
		newBoardCmd(),
		newServeCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ui.Bad.Render(ui.IconError+" "+err.Error()))
		os.Exit(1)
	}
}
