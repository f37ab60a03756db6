package shell

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/dimiro1/banner"

	"github.com/codex-k8s/tutor-mcp/internal/errorsx"
	"github.com/codex-k8s/tutor-mcp/internal/protocol"
)

const bannerTemplate = "{{ .Title \"TUTOR\" \"\" 0 }}\nVersion: %s\n"

// Goodbye is printed when the user leaves.
const Goodbye = "Thanks for learning with me! Goodbye!"

// Conversation is the orchestrator surface the shell drives.
type Conversation interface {
	Send(ctx context.Context, text string) (string, error)
	Tools() []protocol.ToolDescriptor
	Reset()
}

// Options configures a Shell.
type Options struct {
	In      io.Reader
	Out     io.Writer
	Version string
	// Banner prints the start banner.
	Banner bool
	// Color enables ANSI colors in the banner.
	Color bool
	// Done is closed when the tool server connection ends.
	Done   <-chan struct{}
	Logger *slog.Logger
}

// Shell is the interactive read-eval-print loop.
type Shell struct {
	conv Conversation
	opts Options
}

// New creates a shell over conv.
func New(conv Conversation, opts Options) *Shell {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	return &Shell{conv: conv, opts: opts}
}

// Run reads lines until exit, end of input or ctx cancellation. A lost server
// connection ends the loop with a connection_lost error.
func (s *Shell) Run(ctx context.Context) error {
	out := s.opts.Out
	if s.opts.Banner {
		banner.Init(out, true, s.opts.Color, bytes.NewBufferString(fmt.Sprintf(bannerTemplate, s.opts.Version)))
	}
	fmt.Fprintln(out, "Type a question, \"help\" for tools, \"clear\" to start over, \"exit\" to leave.")

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(s.opts.In)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		fmt.Fprint(out, "\nYou: ")

		var (
			line string
			ok   bool
		)
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return nil
		case <-s.opts.Done:
			return s.connectionLost(errorsx.New(errorsx.KindConnectionLost, "tool server exited"))
		case line, ok = <-lines:
		}
		if !ok {
			fmt.Fprintln(out)
			select {
			case err := <-scanErr:
				if err != nil {
					s.opts.Logger.Warn("stdin read error", "error", err)
				}
			default:
			}
			return nil
		}

		text := strings.TrimSpace(line)
		switch strings.ToLower(text) {
		case "":
			continue
		case "exit", "quit", "bye":
			fmt.Fprintln(out, Goodbye)
			return nil
		case "help":
			s.printTools()
			continue
		case "clear":
			s.conv.Reset()
			fmt.Fprintln(out, "notice: conversation cleared")
			continue
		}

		fmt.Fprintln(out, "Thinking...")
		answer, err := s.conv.Send(ctx, text)
		if err != nil {
			switch errorsx.KindOf(err) {
			case errorsx.KindConnectionLost:
				return s.connectionLost(err)
			case errorsx.KindTimeout:
				fmt.Fprintf(out, "notice: the request timed out, please try again (%v)\n", err)
			default:
				if ctx.Err() != nil {
					fmt.Fprintln(out)
					return nil
				}
				fmt.Fprintf(out, "error: %v\n", err)
			}
			continue
		}
		fmt.Fprintf(out, "\nAssistant: %s\n", answer)
	}
}

func (s *Shell) connectionLost(err error) error {
	s.opts.Logger.Error("tool server connection lost", "error", err)
	fmt.Fprintln(s.opts.Out, "notice: lost connection to the tool server, restart tutor-chat to continue")
	return errorsx.Wrap(err, errorsx.KindConnectionLost)
}

func (s *Shell) printTools() {
	tools := s.conv.Tools()
	if len(tools) == 0 {
		fmt.Fprintln(s.opts.Out, "notice: no tools discovered yet")
		return
	}
	fmt.Fprintf(s.opts.Out, "Available tools (%d):\n", len(tools))
	for _, t := range tools {
		fmt.Fprintf(s.opts.Out, "  • %s: %s\n", t.Name, t.Description)
	}
}
