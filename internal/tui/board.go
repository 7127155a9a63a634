package tui

import (
	"context"
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"lifeline/internal/engine"
)

// RunBoard starts the interactive today board and blocks until the user
// quits. The board takes over the alternate screen so quitting restores the
// shell scrollback, and cancelling ctx tears the program down.
func RunBoard(ctx context.Context, svc *engine.Service, out io.Writer) error {
	m := newBoardModel(ctx, svc)
	p := tea.NewProgram(m,
		tea.WithOutput(out),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	_, err := p.Run()
	return err
}
