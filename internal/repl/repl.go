// Package repl is the terminal front end: it analyzes (or adopts) a session and then
// answers questions typed on stdin until the user quits.
package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/comigor/gitmaster-go/internal/logger"
	"github.com/comigor/gitmaster-go/internal/session"
)

var (
	ErrNoSession      = errors.New("a repository URL or a session id is required")
	ErrInvalidSession = errors.New("session has expired or doesn't exist")
)

// Transcripts lists the archived messages of a session.
type Transcripts interface {
	List(ctx context.Context, sessionID string) ([]session.Message, error)
}

// Options selects how the chat is started. RepositoryURL wins over SessionID. When
// History is set, /history also shows what earlier runs archived for the session.
type Options struct {
	RepositoryURL string
	SessionID     string
	ChatOptions   []session.ChatOption
	History       Transcripts
}

type repl struct {
	chat    *session.Chat
	history Transcripts
	out     io.Writer
}

// Run drives one chat over in and out. It returns when in is exhausted, the user quits or
// ctx is cancelled; the session cleanup has been attempted by then.
func Run(ctx context.Context, b session.Backend, opts Options, in io.Reader, out io.Writer) error {
	chat, err := open(ctx, b, opts, out)
	if err != nil {
		return err
	}
	defer func() { <-chat.End() }()

	if chat.Validity() == session.ValidityInvalid {
		return ErrInvalidSession
	}

	r := &repl{chat: chat, history: opts.History, out: out}
	r.banner()
	return r.loop(ctx, in)
}

func open(ctx context.Context, b session.Backend, opts Options, out io.Writer) (*session.Chat, error) {
	notify := session.NotifierFunc(func(n session.Notice) { printNotice(out, n) })

	switch {
	case strings.TrimSpace(opts.RepositoryURL) != "":
		fmt.Fprintf(out, "Analyzing %s ...\n", strings.TrimSpace(opts.RepositoryURL))
		sess, err := session.NewAnalyzer(b).Start(ctx, opts.RepositoryURL, notify)
		if err != nil {
			return nil, err
		}
		chat := session.NewChat(sess.ID, sess.Repository.URL, b, opts.ChatOptions...)
		chat.MarkAnalyzed()
		return chat, nil

	case strings.TrimSpace(opts.SessionID) != "":
		chat := session.NewChat(strings.TrimSpace(opts.SessionID), "", b, opts.ChatOptions...)
		chat.Validate(ctx)
		printNotices(out, chat.DrainNotices())
		return chat, nil

	default:
		return nil, ErrNoSession
	}
}

func (r *repl) banner() {
	fmt.Fprintln(r.out, "=== GitMaster ===")
	fmt.Fprintf(r.out, "Session: %s\n", r.chat.ID())
	if repo := r.chat.RepositoryURL(); repo != "" {
		fmt.Fprintf(r.out, "Repository: %s\n", repo)
	}
	fmt.Fprintln(r.out, "Type /help for commands, /quit to exit")
	fmt.Fprintln(r.out)
}

func (r *repl) loop(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := scanLines(ctx, in)
	for {
		fmt.Fprint(r.out, "You: ")

		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(r.out)
			return nil
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(r.out)
				return nil
			}
			line = strings.TrimSpace(l)
		}

		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if quit := r.handleCommand(ctx, line); quit {
				fmt.Fprintln(r.out, "Goodbye!")
				return nil
			}
			continue
		}

		reply, ok := r.chat.Ask(ctx, line)
		printNotices(r.out, r.chat.DrainNotices())
		if !ok {
			continue
		}
		fmt.Fprintf(r.out, "GitMaster: %s\n\n", reply.Content)
	}
}

// handleCommand runs a slash command and reports whether the loop should stop.
func (r *repl) handleCommand(ctx context.Context, cmd string) bool {
	switch strings.Fields(cmd)[0] {
	case "/quit", "/exit":
		return true

	case "/history":
		msgs := r.transcript(ctx)
		if len(msgs) == 0 {
			fmt.Fprintln(r.out, "No messages yet.")
			return false
		}
		for _, m := range msgs {
			fmt.Fprintf(r.out, "[%s] %s: %s\n", m.Timestamp.Local().Format("15:04"), m.Role, m.Content)
		}
		fmt.Fprintln(r.out)
		return false

	case "/help":
		fmt.Fprintln(r.out, "Available commands:")
		fmt.Fprintln(r.out, "  /history      - Show the conversation so far")
		fmt.Fprintln(r.out, "  /quit, /exit  - End the session and exit")
		fmt.Fprintln(r.out, "  /help         - Show this help message")
		return false

	default:
		fmt.Fprintf(r.out, "Unknown command %s, type /help\n", cmd)
		return false
	}
}

// transcript prefers the archive when it knows more than this run does.
func (r *repl) transcript(ctx context.Context) []session.Message {
	msgs := r.chat.Messages()
	if r.history == nil {
		return msgs
	}
	archived, err := r.history.List(ctx, r.chat.ID())
	if err != nil {
		logger.L.Warn("failed to read archived transcript", "session_id", r.chat.ID(), "error", err)
		return msgs
	}
	if len(archived) > len(msgs) {
		return archived
	}
	return msgs
}

// scanLines feeds in line by line until it is exhausted or ctx is done.
func scanLines(ctx context.Context, in io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			logger.L.Warn("failed to read input", "error", err)
		}
	}()
	return lines
}

func printNotices(out io.Writer, notices []session.Notice) {
	for _, n := range notices {
		printNotice(out, n)
	}
}

func printNotice(out io.Writer, n session.Notice) {
	prefix := "*"
	if n.Level == session.LevelError {
		prefix = "!"
	}
	fmt.Fprintf(out, "%s %s: %s\n", prefix, n.Title, n.Description)
}
