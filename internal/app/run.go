package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"paper_navigator/internal/chat"
)

const consoleHelp = `Commands:
  /status   show indexed documents
  /reload   rebuild the index from the documents directory
  /history  print this session's chat history
  /forget   clear chat history
  /clear    delete all documents and the vector database
  /quit     exit
Anything else is a question about your documents.`

// Run is an interactive console chat over in/out. It returns on EOF, /quit
// or as soon as ctx is cancelled, even while waiting for input.
func (a *App) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	lines, readErr := readLines(ctx, in)

	history := chat.NewStore()
	session := history.Create()

	fmt.Fprintln(out, "📚 Paper Navigator. Ask a question about your documents, /help for commands.")
	if err := a.EnsureIndex(ctx); errors.Is(err, ErrNoIndex) {
		fmt.Fprintln(out, chat.EmptyMessage)
	} else if err != nil {
		fmt.Fprintf(out, "❌ %v\n", err)
	} else {
		fmt.Fprintln(out, chat.WelcomeMessage)
	}

	confirmClear := false
	for {
		if ctx.Err() != nil {
			a.log.Infof("Shutting down console")
			return nil
		}
		fmt.Fprint(out, "> ")

		var raw string
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			a.log.Infof("Shutting down console")
			return nil
		case l, ok := <-lines:
			if !ok {
				if err := <-readErr; err != nil {
					return fmt.Errorf("stdin error: %w", err)
				}
				fmt.Fprintln(out)
				return nil
			}
			raw = l
		}

		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		if confirmClear {
			confirmClear = false
			if strings.EqualFold(line, "yes") {
				if err := a.ClearWorkspace(); err != nil {
					fmt.Fprintf(out, "❌ %v\n", err)
				} else {
					history.ClearAll()
					fmt.Fprintln(out, "✅ All data has been deleted!")
				}
			} else {
				fmt.Fprintln(out, "Cancelled.")
			}
			continue
		}

		switch strings.ToLower(line) {
		case "/quit", "/exit":
			return nil
		case "/help":
			fmt.Fprintln(out, consoleHelp)
		case "/status":
			a.printStatus(out)
		case "/reload":
			built, err := a.ResetIndex(ctx)
			switch {
			case err != nil:
				fmt.Fprintf(out, "❌ %v\n", err)
			case built:
				fmt.Fprintln(out, "🔄 Index rebuilt.")
			default:
				fmt.Fprintln(out, chat.EmptyMessage)
			}
		case "/history":
			msgs, _ := history.Messages(session)
			for _, m := range msgs {
				fmt.Fprintf(out, "[%s] %s\n", m.Role, m.Content)
			}
		case "/forget":
			_ = history.Clear(session)
			fmt.Fprintln(out, "Chat history cleared!")
		case "/clear":
			fmt.Fprintln(out, "⚠️  This will delete all uploaded files and the database. Type yes to confirm.")
			confirmClear = true
		default:
			a.answer(ctx, out, history, session, line)
		}
	}
}

// answer streams the reply to out and records both turns in history.
func (a *App) answer(ctx context.Context, out io.Writer, history *chat.Store, session, question string) {
	_ = history.Append(session, chat.RoleUser, question)

	ans, err := a.Query(ctx, question, func(tok string) error {
		_, err := io.WriteString(out, tok)
		return err
	})
	fmt.Fprintln(out)

	var reply string
	switch {
	case errors.Is(err, ErrNoIndex):
		reply = chat.EmptyMessage
		fmt.Fprintln(out, reply)
	case err != nil:
		reply = fmt.Sprintf("An error occurred: %v", err)
		fmt.Fprintf(out, "❌ %s\n", reply)
	default:
		reply = ans.Text
		for i, s := range ans.Sources {
			fmt.Fprintf(out, "   %d. %s, %s (similarity: %.2f)\n", i+1, s.Source, s.Section, s.Similarity)
		}
	}
	_ = history.Append(session, chat.RoleAssistant, reply)
}

func (a *App) printStatus(out io.Writer) {
	st, err := a.Status()
	if err != nil {
		fmt.Fprintf(out, "❌ %v\n", err)
		return
	}
	fmt.Fprintf(out, "Ready: %v, chunks: %d\n", st.Ready, st.Chunks)
	for _, f := range st.Indexed {
		fmt.Fprintf(out, "  %s (%s, %d chunks)\n", f.Name, f.Format, f.Chunks)
	}
	if len(st.Indexed) == 0 {
		for _, name := range st.Documents {
			fmt.Fprintf(out, "  %s (not indexed)\n", name)
		}
	}
}

// readLines scans in on its own goroutine so the console loop can stop on
// ctx while a read is blocked. The error channel yields the scan error, or
// nil, once lines is closed.
func readLines(ctx context.Context, in io.Reader) (<-chan string, <-chan error) {
	lines := make(chan string)
	errc := make(chan error, 1)

	go func() {
		defer close(errc)
		defer close(lines)

		scanner := bufio.NewScanner(in)
		const maxLineSize = 1024 * 1024
		scanner.Buffer(make([]byte, 64*1024), maxLineSize)

		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		errc <- scanner.Err()
	}()
	return lines, errc
}
