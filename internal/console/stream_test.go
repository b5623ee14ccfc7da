package console

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRenderLayout(t *testing.T) {
	out := &syncBuffer{}
	s := NewStream(strings.NewReader(""), out, StreamOptions{})
	defer s.Close()

	s.Render(Screen{Header: []string{"HEAD"}, Body: []string{"a", "b"}, Prompt: "Enter:"})
	assert.Equal(t, "HEAD\n\na\nb\n\nEnter:\n", out.String())
}

func TestClearScreenPrefix(t *testing.T) {
	out := &syncBuffer{}
	s := NewStream(strings.NewReader(""), out, StreamOptions{ClearScreen: true})
	defer s.Close()

	s.Render(Screen{Prompt: ">"})
	assert.True(t, strings.HasPrefix(out.String(), clearSequence))
}

func TestBacklogSurvivesRenderUntilInput(t *testing.T) {
	out := &syncBuffer{}
	s := NewStream(strings.NewReader("next\n"), out, StreamOptions{})
	defer s.Close()

	s.Render(Screen{Prompt: "P"})
	s.Notify("[10:00:00] New message from Ana (ID: 7):", "→ hola")
	assert.Contains(t, out.String(), "→ hola\n\nP\n", "notice repeats the view prompt")

	s.Render(Screen{Body: []string{"list"}, Prompt: "P"})
	last := out.String()[strings.LastIndex(out.String(), "list"):]
	assert.Contains(t, last, "→ hola", "re-render keeps the pending notice")

	line, err := s.ReadLine(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "next", line)

	s.Render(Screen{Body: []string{"fresh"}, Prompt: "P"})
	last = out.String()[strings.LastIndex(out.String(), "fresh"):]
	assert.NotContains(t, last, "→ hola", "input clears the backlog")
}

func TestPromptAndEOF(t *testing.T) {
	out := &syncBuffer{}
	s := NewStream(strings.NewReader("y\n"), out, StreamOptions{})
	defer s.Close()

	answer, err := s.Prompt(context.Background(), "Sure? (y/N):")
	require.NoError(t, err)
	assert.Equal(t, "y", answer)
	assert.Equal(t, "Sure? (y/N): ", out.String())

	_, err = s.ReadLine(context.Background())
	assert.True(t, errors.Is(err, io.EOF))
}

func TestLinesPastScannerLimit(t *testing.T) {
	long := strings.Repeat("x", 70<<10)
	huge := strings.Repeat("y", maxLineBytes+10)
	in := long + "\n" + huge + "\nafter\r\nlast"
	s := NewStream(strings.NewReader(in), &syncBuffer{}, StreamOptions{})
	defer s.Close()
	ctx := context.Background()

	line, err := s.ReadLine(ctx)
	require.NoError(t, err)
	assert.Len(t, line, len(long))

	_, err = s.ReadLine(ctx)
	assert.ErrorIs(t, err, ErrLineTooLong)

	line, err = s.ReadLine(ctx)
	require.NoError(t, err)
	assert.Equal(t, "after", line)

	line, err = s.ReadLine(ctx)
	require.NoError(t, err)
	assert.Equal(t, "last", line)

	_, err = s.ReadLine(ctx)
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadLineHonorsContext(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()
	s := NewStream(r, io.Discard, StreamOptions{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := s.ReadLine(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	s.Close()
	_, _ = w.Write([]byte("unblock\n"))
}

func TestConcurrentWritersDoNotInterleaveLines(t *testing.T) {
	out := &syncBuffer{}
	s := NewStream(strings.NewReader(""), out, StreamOptions{})
	defer s.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.Notify("notice-line-one", "notice-line-two")
		}()
		go func() {
			defer wg.Done()
			s.Render(Screen{Body: []string{"body-line"}, Prompt: "P"})
		}()
	}
	wg.Wait()

	for _, l := range strings.Split(out.String(), "\n") {
		switch l {
		case "", "P", "body-line", "notice-line-one", "notice-line-two":
		default:
			t.Fatalf("garbled line %q", l)
		}
	}
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "👍", Sanitize("👍🏻"))
	assert.Equal(t, "plain", Sanitize("plain"))
}
