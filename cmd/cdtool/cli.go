package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/GergesShamon/convenient-discussions/internal/errors"
	"github.com/GergesShamon/convenient-discussions/internal/ops"
)

// maxStdinBytes bounds what commands read from stdin.
const maxStdinBytes = 4 << 20

// newCLIApp creates the CLI application with all commands.
func newCLIApp(deps *ops.Deps) *cli.App {
	app := &cli.App{
		Name:    "cdtool",
		Usage:   "Reply to, move and track talk page discussions",
		Version: Version,
		Commands: []*cli.Command{
			locateCmd(deps),
			replyCmd(deps),
			addSubsectionCmd(deps),
			moveCmd(deps),
			movesCmd(deps),
			anchorCmd(),
			timestampCmd(deps),
			visitCmd(deps),
			visitsCmd(deps),
			watchCmd(deps),
			unwatchCmd(deps),
			watchedCmd(deps),
			renameWatchedCmd(deps),
			importCmd(deps),
			suggestCmd(deps),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// sectionFlags identify a section the way it is rendered on the page.
func sectionFlags(extra ...cli.Flag) []cli.Flag {
	flags := []cli.Flag{
		&cli.StringFlag{Name: "page", Aliases: []string{"p"}, Required: true, Usage: "Title of the page the section is on"},
		&cli.StringFlag{Name: "headline", Required: true, Usage: "Section headline as rendered"},
		&cli.IntFlag{Name: "level", Value: 2, Usage: "Heading level"},
		&cli.IntFlag{Name: "id", Usage: "Zero-based index of the section on the page"},
		&cli.StringFlag{Name: "author", Usage: "Author of the section's oldest comment"},
		&cli.StringFlag{Name: "date", Usage: "Date of the section's oldest comment (RFC 3339)"},
		&cli.StringFlag{Name: "comment-text", Usage: "Text of the section's oldest comment"},
		&cli.StringSliceFlag{Name: "preceding", Usage: "Headline of a preceding section, nearest first (repeatable)"},
	}
	return append(flags, extra...)
}

func sectionRef(c *cli.Context) ops.SectionRef {
	ref := ops.SectionRef{
		Page:               c.String("page"),
		Headline:           c.String("headline"),
		Level:              c.Int("level"),
		ID:                 c.Int("id"),
		PrecedingHeadlines: c.StringSlice("preceding"),
	}
	if c.String("author") != "" || c.String("date") != "" {
		ref.OldestComment = &ops.CommentRef{
			Author: c.String("author"),
			Date:   c.String("date"),
			Text:   c.String("comment-text"),
		}
	}
	return ref
}

// locateCmd creates the locate command.
func locateCmd(deps *ops.Deps) *cli.Command {
	return &cli.Command{
		Name:  "locate",
		Usage: "Find a section in its page's wikitext",
		Flags: sectionFlags(
			&cli.BoolFlag{Name: "include-code", Usage: "Include the section's wikitext"},
			&cli.BoolFlag{Name: "stdin", Usage: "Read the wikitext from stdin instead of fetching the page"},
		),
		Action: func(c *cli.Context) error {
			input := ops.LocateInput{
				Section:     sectionRef(c),
				IncludeCode: c.Bool("include-code"),
			}
			if c.Bool("stdin") {
				code, err := readStdin(maxStdinBytes)
				if err != nil {
					return outputError(errors.NewInvalidRequest(err.Error()))
				}
				input.Code = &code
			}

			output, err := ops.Locate(c.Context, deps, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// replyCmd creates the reply command.
func replyCmd(deps *ops.Deps) *cli.Command {
	return &cli.Command{
		Name:  "reply",
		Usage: "Reply in a section (reads the text from stdin unless --text is given)",
		Flags: sectionFlags(
			&cli.StringFlag{Name: "text", Aliases: []string{"t"}, Usage: "Reply text"},
			&cli.StringFlag{Name: "indentation", Usage: "List markup of the comment replied to, e.g. \"::\""},
			&cli.StringFlag{Name: "summary", Aliases: []string{"s"}, Usage: "Edit summary"},
			&cli.BoolFlag{Name: "minor", Usage: "Mark the edit as minor"},
			&cli.BoolFlag{Name: "dry-run", Usage: "Print the new page code without saving"},
		),
		Action: func(c *cli.Context) error {
			text, err := commentText(c)
			if err != nil {
				return outputError(err)
			}

			output, err := ops.Reply(c.Context, deps, ops.ReplyInput{
				Section:     sectionRef(c),
				Text:        text,
				Indentation: c.String("indentation"),
				Summary:     c.String("summary"),
				Minor:       c.Bool("minor"),
				DryRun:      c.Bool("dry-run"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// addSubsectionCmd creates the add-subsection command.
func addSubsectionCmd(deps *ops.Deps) *cli.Command {
	return &cli.Command{
		Name:  "add-subsection",
		Usage: "Add a subsection to a section (reads the text from stdin unless --text is given)",
		Flags: sectionFlags(
			&cli.StringFlag{Name: "new-headline", Required: true, Usage: "Headline of the new subsection"},
			&cli.StringFlag{Name: "text", Aliases: []string{"t"}, Usage: "First comment of the subsection"},
			&cli.StringFlag{Name: "summary", Aliases: []string{"s"}, Usage: "Edit summary"},
			&cli.BoolFlag{Name: "minor", Usage: "Mark the edit as minor"},
			&cli.BoolFlag{Name: "dry-run", Usage: "Print the new page code without saving"},
		),
		Action: func(c *cli.Context) error {
			text, err := commentText(c)
			if err != nil {
				return outputError(err)
			}

			output, err := ops.AddSubsection(c.Context, deps, ops.AddSubsectionInput{
				Section:  sectionRef(c),
				Headline: c.String("new-headline"),
				Text:     text,
				Summary:  c.String("summary"),
				Minor:    c.Bool("minor"),
				DryRun:   c.Bool("dry-run"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// moveCmd creates the move command.
func moveCmd(deps *ops.Deps) *cli.Command {
	return &cli.Command{
		Name:  "move",
		Usage: "Move a section to another talk page",
		Flags: sectionFlags(
			&cli.StringFlag{Name: "to", Required: true, Usage: "Target talk page"},
			&cli.StringFlag{Name: "summary-ending", Usage: "Text appended to both edit summaries"},
			&cli.BoolFlag{Name: "no-link", Usage: "Don't leave a link on the source page"},
		),
		Action: func(c *cli.Context) error {
			keepLink := !c.Bool("no-link")
			output, err := ops.Move(c.Context, deps, ops.MoveInput{
				Section:       sectionRef(c),
				TargetPage:    c.String("to"),
				SummaryEnding: c.String("summary-ending"),
				KeepLink:      &keepLink,
			})
			if err != nil {
				return outputError(err)
			}
			if err := outputJSON(output); err != nil {
				return err
			}
			if output.Message != "" {
				return cli.Exit(output.Message, 1)
			}
			return nil
		},
	}
}

// movesCmd creates the moves command.
func movesCmd(deps *ops.Deps) *cli.Command {
	return &cli.Command{
		Name:      "moves",
		Usage:     "List journaled moves, or show one by ID",
		ArgsUsage: "[id]",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: 20, Usage: "Maximum items to return"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Value: 0, Usage: "Items to skip"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.MoveHistory(deps.DB, ops.MoveHistoryInput{
				ID:     c.Args().First(),
				Limit:  c.Int("limit"),
				Offset: c.Int("offset"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// anchorCmd creates the anchor command.
func anchorCmd() *cli.Command {
	return &cli.Command{
		Name:      "anchor",
		Usage:     "Parse a comment anchor, or build one from --date and --author",
		ArgsUsage: "[anchor]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "date", Usage: "Comment date (RFC 3339)"},
			&cli.StringFlag{Name: "author", Usage: "Comment author"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Anchor(ops.AnchorInput{
				Anchor: c.Args().First(),
				Date:   c.String("date"),
				Author: c.String("author"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// timestampCmd creates the timestamp command.
func timestampCmd(deps *ops.Deps) *cli.Command {
	return &cli.Command{
		Name:      "timestamp",
		Usage:     "Find the last signature timestamp in the text (argument or stdin)",
		ArgsUsage: "[text]",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "offset", Usage: "Timezone offset in minutes to assume"},
		},
		Action: func(c *cli.Context) error {
			text := strings.Join(c.Args().Slice(), " ")
			if text == "" && stdinHasData() {
				var err error
				if text, err = readStdin(maxStdinBytes); err != nil {
					return outputError(errors.NewInvalidRequest(err.Error()))
				}
			}

			input := ops.ParseTimestampInput{Text: text}
			if c.IsSet("offset") {
				offset := c.Int("offset")
				input.OffsetMinutes = &offset
			}

			output, err := ops.ParseTimestamp(deps.Engine, input, time.Now())
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// visitCmd creates the visit command.
func visitCmd(deps *ops.Deps) *cli.Command {
	return &cli.Command{
		Name:  "visit",
		Usage: "Record a visit to a page (reads a JSON array of comments from stdin if piped)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "page-id", Required: true, Usage: "Numeric page ID"},
			&cli.StringSliceFlag{Name: "unseen", Usage: "Anchor of a comment that must stay unseen (repeatable)"},
			&cli.BoolFlag{Name: "sync", Usage: "Store all visits in the user's options afterwards"},
		},
		Action: func(c *cli.Context) error {
			var comments []ops.VisitComment
			if stdinHasData() {
				data, err := readStdin(maxStdinBytes)
				if err != nil {
					return outputError(errors.NewInvalidRequest(err.Error()))
				}
				if data != "" {
					if err := json.Unmarshal([]byte(data), &comments); err != nil {
						return outputError(errors.NewInvalidRequest("comments must be a JSON array: " + err.Error()))
					}
				}
			}

			output, err := ops.RecordVisit(c.Context, deps, ops.RecordVisitInput{
				PageID:        c.String("page-id"),
				Comments:      comments,
				UnseenAnchors: c.StringSlice("unseen"),
				Sync:          c.Bool("sync"),
			}, time.Now())
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// visitsCmd creates the visits command.
func visitsCmd(deps *ops.Deps) *cli.Command {
	return &cli.Command{
		Name:  "visits",
		Usage: "Show the recorded visits of a page",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "page-id", Required: true, Usage: "Numeric page ID"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Visits(deps.DB, ops.VisitsInput{PageID: c.String("page-id")})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

func watchFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "page-id", Required: true, Usage: "Numeric page ID"},
		&cli.StringFlag{Name: "headline", Required: true, Usage: "Section headline"},
		&cli.BoolFlag{Name: "sync", Usage: "Store watched sections in the user's options afterwards"},
	}
}

// watchCmd creates the watch command.
func watchCmd(deps *ops.Deps) *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Watch a section",
		Flags: watchFlags(),
		Action: func(c *cli.Context) error {
			output, err := ops.Watch(c.Context, deps, ops.WatchInput{
				PageID:   c.String("page-id"),
				Headline: c.String("headline"),
				Sync:     c.Bool("sync"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// unwatchCmd creates the unwatch command.
func unwatchCmd(deps *ops.Deps) *cli.Command {
	return &cli.Command{
		Name:  "unwatch",
		Usage: "Stop watching a section",
		Flags: watchFlags(),
		Action: func(c *cli.Context) error {
			output, err := ops.Unwatch(c.Context, deps, ops.WatchInput{
				PageID:   c.String("page-id"),
				Headline: c.String("headline"),
				Sync:     c.Bool("sync"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// watchedCmd creates the watched command.
func watchedCmd(deps *ops.Deps) *cli.Command {
	return &cli.Command{
		Name:  "watched",
		Usage: "List watched sections",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "page-id", Usage: "Only this page"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Watched(deps.DB, ops.WatchedInput{PageID: c.String("page-id")})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// renameWatchedCmd creates the rename-watched command.
func renameWatchedCmd(deps *ops.Deps) *cli.Command {
	return &cli.Command{
		Name:  "rename-watched",
		Usage: "Follow a watched section whose headline changed",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "page-id", Required: true, Usage: "Numeric page ID"},
			&cli.StringFlag{Name: "from", Required: true, Usage: "Old headline"},
			&cli.StringFlag{Name: "to", Required: true, Usage: "New headline"},
			&cli.BoolFlag{Name: "old-still-present", Usage: "Another section still has the old headline"},
			&cli.BoolFlag{Name: "sync", Usage: "Store watched sections in the user's options afterwards"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.RenameWatched(c.Context, deps, ops.RenameWatchedInput{
				PageID:          c.String("page-id"),
				OldHeadline:     c.String("from"),
				NewHeadline:     c.String("to"),
				OldStillPresent: c.Bool("old-still-present"),
				Sync:            c.Bool("sync"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// importCmd creates the import command.
func importCmd(deps *ops.Deps) *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Load visits or watched sections from the user's options",
		ArgsUsage: "visits|watched",
		Action: func(c *cli.Context) error {
			var (
				n   int
				err error
			)
			switch what := c.Args().First(); what {
			case "visits":
				n, err = ops.ImportVisits(c.Context, deps)
			case "watched":
				n, err = ops.ImportWatched(c.Context, deps)
			default:
				return outputError(errors.NewInvalidRequest(fmt.Sprintf("import what? want visits or watched, got %q", what)))
			}
			if err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]int{"imported": n})
		},
	}
}

// suggestCmd creates the suggest command.
func suggestCmd(deps *ops.Deps) *cli.Command {
	return &cli.Command{
		Name:      "suggest",
		Usage:     "Complete a user name",
		ArgsUsage: "<prefix>",
		Action: func(c *cli.Context) error {
			output, err := ops.SuggestUsers(c.Context, deps, ops.SuggestUsersInput{Prefix: c.Args().First()})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// Helper functions

// commentText takes the comment from --text or, failing that, stdin.
func commentText(c *cli.Context) (string, error) {
	if text := c.String("text"); text != "" {
		return text, nil
	}
	if !stdinHasData() {
		return "", errors.NewInvalidRequest("text must be given with --text or piped via stdin")
	}
	text, err := readStdin(maxStdinBytes)
	if err != nil {
		return "", errors.NewInvalidRequest(err.Error())
	}
	return text, nil
}

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if cdErr, ok := errors.As(err); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", cdErr.Code, cdErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads at most limit bytes from stdin.
func readStdin(limit int64) (string, error) {
	data, err := io.ReadAll(io.LimitReader(os.Stdin, limit+1))
	if err != nil {
		return "", err
	}
	if int64(len(data)) > limit {
		return "", fmt.Errorf("stdin exceeds %d bytes", limit)
	}
	return strings.TrimSpace(string(data)), nil
}
