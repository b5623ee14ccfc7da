package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

const (
	clearSequence = "\033[H\033[2J"
	maxBacklog    = 50
	maxLineBytes  = 1 << 20
)

// ErrLineTooLong is returned by ReadLine for an input line over maxLineBytes.
// The line is discarded and reading continues with the next one.
var ErrLineTooLong = errors.New("input line too long")

// StreamOptions configure a Stream console.
type StreamOptions struct {
	// ClearScreen emits an ANSI clear before every render.
	ClearScreen bool
	Width       int
}

type lineResult struct {
	line string
	err  error
}

// Stream is a line console over an io.Reader and io.Writer. Lines printed
// since the last input are kept and repeated under each render, so a refresh
// never hides a notice the operator has not answered yet.
type Stream struct {
	out  io.Writer
	opts StreamOptions

	mu      sync.Mutex
	prompt  string
	backlog []string

	in        io.Reader
	startOnce sync.Once
	lines     chan lineResult
	closeOnce sync.Once
	closed    chan struct{}
}

var _ Console = (*Stream)(nil)

// NewStream returns a console reading lines from in and writing to out.
func NewStream(in io.Reader, out io.Writer, opts StreamOptions) *Stream {
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	return &Stream{
		in:     in,
		out:    out,
		opts:   opts,
		lines:  make(chan lineResult),
		closed: make(chan struct{}),
	}
}

func (s *Stream) Width() int { return s.opts.Width }

func (s *Stream) Render(scr Screen) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var b strings.Builder
	if s.opts.ClearScreen {
		b.WriteString(clearSequence)
	}
	for _, l := range scr.Header {
		b.WriteString(l + "\n")
	}
	b.WriteString("\n")
	for _, l := range scr.Body {
		b.WriteString(l + "\n")
	}
	if len(s.backlog) > 0 {
		b.WriteString("\n")
		for _, l := range s.backlog {
			b.WriteString(l + "\n")
		}
	}
	b.WriteString("\n" + scr.Prompt + "\n")
	s.prompt = scr.Prompt
	_, _ = io.WriteString(s.out, b.String())
}

func (s *Stream) Notify(lines ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.remember(lines)
	var b strings.Builder
	b.WriteString("\n")
	for _, l := range lines {
		b.WriteString(l + "\n")
	}
	if s.prompt != "" {
		b.WriteString("\n" + s.prompt + "\n")
	}
	_, _ = io.WriteString(s.out, b.String())
}

func (s *Stream) Println(lines ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.remember(lines)
	for _, l := range lines {
		_, _ = fmt.Fprintln(s.out, l)
	}
}

func (s *Stream) remember(lines []string) {
	s.backlog = append(s.backlog, lines...)
	if over := len(s.backlog) - maxBacklog; over > 0 {
		s.backlog = append(s.backlog[:0], s.backlog[over:]...)
	}
}

func (s *Stream) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.backlog = nil
	if s.opts.ClearScreen {
		_, _ = io.WriteString(s.out, clearSequence)
	}
}

func (s *Stream) start() {
	s.startOnce.Do(func() {
		go s.scan()
	})
}

func (s *Stream) scan() {
	r := bufio.NewReader(s.in)
	for {
		line, err := readLine(r, maxLineBytes)
		if err == nil || errors.Is(err, ErrLineTooLong) {
			if !s.deliver(lineResult{line: line, err: err}) {
				return
			}
			continue
		}
		if line != "" && !s.deliver(lineResult{line: line}) {
			return
		}
		s.deliver(lineResult{err: err})
		return
	}
}

func (s *Stream) deliver(r lineResult) bool {
	select {
	case s.lines <- r:
		return true
	case <-s.closed:
		return false
	}
}

// readLine reads up to the next newline. Lines longer than limit are consumed
// and reported as ErrLineTooLong. A final line without a newline is returned
// together with io.EOF.
func readLine(r *bufio.Reader, limit int) (string, error) {
	var buf []byte
	tooLong := false
	for {
		chunk, err := r.ReadSlice('\n')
		if !tooLong && len(buf)+len(chunk) <= limit+1 {
			buf = append(buf, chunk...)
		} else {
			tooLong, buf = true, nil
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if tooLong {
			return "", ErrLineTooLong
		}
		return strings.TrimRight(string(buf), "\r\n"), err
	}
}

// ReadLine returns the next input line. It returns io.EOF once the input is
// exhausted.
func (s *Stream) ReadLine(ctx context.Context) (string, error) {
	s.start()
	select {
	case r := <-s.lines:
		if r.err != nil {
			return "", r.err
		}
		s.mu.Lock()
		s.backlog = nil
		s.mu.Unlock()
		return r.line, nil
	case <-s.closed:
		return "", io.EOF
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *Stream) Prompt(ctx context.Context, question string) (string, error) {
	s.mu.Lock()
	_, _ = io.WriteString(s.out, question)
	if !strings.HasSuffix(question, " ") {
		_, _ = io.WriteString(s.out, " ")
	}
	s.mu.Unlock()
	return s.ReadLine(ctx)
}

// Close releases the reader goroutine. The underlying reader is not closed.
func (s *Stream) Close() {
	s.closeOnce.Do(func() { close(s.closed) })
}
