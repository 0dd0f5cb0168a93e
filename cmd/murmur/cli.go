package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/murmur/internal/capture"
	"github.com/hpungsan/murmur/internal/errors"
	"github.com/hpungsan/murmur/internal/note"
	"github.com/hpungsan/murmur/internal/ops"
	"github.com/hpungsan/murmur/internal/speech"
	"github.com/hpungsan/murmur/internal/speech/spool"
	"github.com/hpungsan/murmur/internal/speech/whisper"
	"github.com/hpungsan/murmur/internal/web"
)

// Dictation sources for the record command.
const (
	sourceStdin = "stdin"
	sourceSpool = "spool"
)

// newCLIApp creates the CLI application with all commands.
// e may be nil when only help or version output is needed.
func newCLIApp(e *env) *cli.App {
	app := &cli.App{
		Name:    "murmur",
		Usage:   "Quick notes, typed or dictated",
		Version: Version,
		Commands: []*cli.Command{
			addCmd(e),
			listCmd(e),
			showCmd(e),
			deleteCmd(e),
			recordCmd(e),
			exportCmd(e),
			importCmd(e),
			serveCmd(e),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// addCmd creates the add command.
func addCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:      "add",
		Usage:     "Add a note (from arguments or piped stdin)",
		ArgsUsage: "[text...]",
		Action: func(c *cli.Context) error {
			content := strings.Join(c.Args().Slice(), " ")
			if content == "" {
				text, err := readInput(c.App.Reader)
				if err != nil {
					return outputError(err)
				}
				content = text
			}

			output, err := ops.Create(c.Context, e.store, ops.CreateInput{Content: content})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(c.App.Writer, output)
		},
	}
}

// listCmd creates the list command.
func listCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List notes, newest first",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "search", Aliases: []string{"s"}, Usage: "Case-insensitive substring filter"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultListLimit, Usage: "Maximum items to return"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Value: 0, Usage: "Items to skip"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.List(e.store, ops.ListInput{
				Query:  c.String("search"),
				Limit:  c.Int("limit"),
				Offset: c.Int("offset"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(c.App.Writer, output)
		},
	}
}

// showCmd creates the show command.
func showCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show a note by ID",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			output, err := ops.Fetch(e.store, ops.FetchInput{ID: c.Args().First()})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(c.App.Writer, output)
		},
	}
}

// deleteCmd creates the delete command.
func deleteCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete a note by ID",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			output, err := ops.Delete(c.Context, e.store, ops.DeleteInput{ID: c.Args().First()})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(c.App.Writer, output)
		},
	}
}

// recordCmd creates the record command.
func recordCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "record",
		Usage: "Dictate a note; stops on Ctrl-C or end of stream, then saves",
		Description: "With --source=stdin, transcript lines are read from stdin; lines starting\n" +
			"with \"" + speech.InterimPrefix + "\" are interim results. With --source=spool, audio segments\n" +
			"dropped into the spool directory are transcribed with the OpenAI audio API.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "source", Value: sourceStdin, Usage: "Speech source: stdin|spool"},
			&cli.StringFlag{Name: "locale", Usage: "Recognition locale (default: config locale)"},
		},
		Action: func(c *cli.Context) error {
			rec, err := newRecognizer(e, c.String("source"), c.App.Reader)
			if err != nil {
				return outputError(err)
			}

			cfg := speech.DefaultConfig()
			cfg.Locale = firstNonEmpty(c.String("locale"), e.cfg.Locale, cfg.Locale)
			cfg.Continuous = e.cfg.Continuous()
			cfg.InterimResults = e.cfg.InterimResults()

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			output, err := dictate(ctx, e, rec, cfg, c.App.ErrWriter)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(c.App.Writer, output)
		},
	}
}

// newRecognizer builds the speech capability for source. A nil recognizer
// with a nil error means speech is unavailable on this machine.
func newRecognizer(e *env, source string, stdin io.Reader) (speech.Recognizer, error) {
	switch source {
	case sourceStdin, "":
		return speech.NewLineRecognizer(stdin), nil
	case sourceSpool:
		t, err := whisper.New(e.cfg.OpenAIAPIKey,
			whisper.WithModel(e.cfg.WhisperModel),
			whisper.WithBaseURL(e.cfg.OpenAIBaseURL),
		)
		if err != nil {
			e.log.Warn("spool transcription disabled", slog.Any("error", err))
			return nil, nil
		}
		return spool.New(e.cfg.ResolveSpoolDir(e.baseDir), t, e.log), nil
	default:
		return nil, errors.NewInvalidRequest(fmt.Sprintf("unknown source %q (want %s or %s)", source, sourceStdin, sourceSpool))
	}
}

// dictate runs one capture session until ctx is cancelled or the stream
// ends, then saves the draft. Draft updates are echoed to progress.
func dictate(ctx context.Context, e *env, rec speech.Recognizer, cfg speech.Config, progress io.Writer) (*ops.CreateOutput, error) {
	if progress == nil {
		progress = io.Discard
	}

	ended := make(chan struct{})
	var (
		mu      sync.Mutex
		last    string
		endOnce sync.Once
	)

	session := capture.New(e.store, rec, cfg,
		capture.WithLogger(e.log),
		capture.OnChange(func(s capture.Snapshot) {
			if s.State != capture.Recording {
				endOnce.Do(func() { close(ended) })
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if s.Draft != last {
				last = s.Draft
				fmt.Fprintf(progress, "\r%s", s.Draft)
			}
		}),
	)
	defer session.Close()

	if err := session.StartRecording(ctx); err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
	case <-ended:
	}
	fmt.Fprintln(progress)

	// The stream may have ended on its own
	if session.Snapshot().State == capture.Recording {
		if err := session.StopRecording(); err != nil {
			return nil, err
		}
	}

	snap := session.Snapshot()
	if snap.LastError != nil && strings.TrimSpace(snap.Draft) == "" {
		return nil, snap.LastError
	}

	// ctx may be cancelled by the interrupt that ended recording
	n, err := session.Save(context.WithoutCancel(ctx))
	if n.ID == "" {
		return nil, err
	}
	return &ops.CreateOutput{
		ID:        n.ID,
		CreatedAt: n.CreatedAt,
		Chars:     note.CountChars(n.Content),
	}, err
}

// exportCmd creates the export command.
func exportCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export notes to a JSON file or stdout",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Export file path (default: ~/.murmur/exports/<key>-<timestamp>.json)"},
			&cli.BoolFlag{Name: "stdout", Usage: "Write the collection to stdout instead of a file"},
		},
		Action: func(c *cli.Context) error {
			if c.Bool("stdout") {
				if c.IsSet("path") {
					return outputError(errors.NewInvalidRequest("--path and --stdout are mutually exclusive"))
				}
				if _, err := ops.ExportTo(c.Context, e.store, c.App.Writer); err != nil {
					return outputError(err)
				}
				return nil
			}

			output, err := ops.Export(c.Context, e.store, e.cfg, ops.ExportInput{Path: c.String("path")})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(c.App.Writer, output)
		},
	}
}

// importCmd creates the import command.
func importCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Import notes from a JSON file or piped stdin",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Import file path (default: read stdin)"},
		},
		Action: func(c *cli.Context) error {
			var (
				output *ops.ImportOutput
				err    error
			)
			if path := c.String("path"); path != "" {
				output, err = ops.Import(c.Context, e.store, e.cfg, ops.ImportInput{Path: path})
			} else {
				if isTTY(c.App.Reader) {
					return outputError(errors.NewInvalidRequest("--path is required unless a collection is piped via stdin"))
				}
				output, err = ops.ImportFrom(c.Context, e.store, c.App.Reader)
			}
			if err != nil {
				return outputError(err)
			}

			return outputJSON(c.App.Writer, output)
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(e *env) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the local web UI",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Address to bind"},
			&cli.IntFlag{Name: "port", Value: 8741, Usage: "Port to listen on"},
		},
		Action: func(c *cli.Context) error {
			port := c.Int("port")
			if port < 1 || port > 65535 {
				return outputError(errors.NewInvalidRequest(fmt.Sprintf("invalid port %d", port)))
			}

			srv, err := web.NewServer(e.store, e.cfg, Version, c.String("bind"), port, e.log)
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			if err := web.Run(srv, e.log); err != nil {
				return outputError(errors.NewInternal(err))
			}
			return nil
		},
	}
}

// Helper functions

// outputJSON marshals result to w as indented JSON.
func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if me, ok := errors.As(err); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", me.Code, me.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// isTTY reports whether r is an interactive terminal.
func isTTY(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// readInput reads note content piped on r.
func readInput(r io.Reader) (string, error) {
	if isTTY(r) {
		return "", errors.NewInvalidRequest("note text must be given as arguments or piped via stdin")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", errors.NewInternal(err)
	}
	return strings.TrimSpace(string(data)), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
