// Package console is the terminal surface of the client: a full-screen tview
// UI and a plain line-based stream for pipes and tests.
package console

import "context"

// Screen is one rendered view.
type Screen struct {
	Header []string
	Body   []string
	Prompt string
}

// Console is shared by the render loop, background notifications and the
// command processor. Implementations serialize all output.
type Console interface {
	// Render replaces the current view.
	Render(s Screen)
	// Notify shows an asynchronous notice without replacing the view.
	Notify(lines ...string)
	// Println reports the outcome of a command.
	Println(lines ...string)
	// Clear drops notices and scrollback.
	Clear()
	// ReadLine blocks until the operator submits a line.
	ReadLine(ctx context.Context) (string, error)
	// Prompt asks a question and returns the answer.
	Prompt(ctx context.Context, question string) (string, error)
	// Width is the usable number of columns.
	Width() int
}

// Runner is implemented by consoles that own the terminal event loop.
type Runner interface {
	Run(ctx context.Context) error
	Stop()
}

const DefaultWidth = 64
