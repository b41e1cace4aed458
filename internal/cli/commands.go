package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/codalotl/mergeview/internal/clock"
	"github.com/codalotl/mergeview/internal/diff"
	"github.com/codalotl/mergeview/internal/mergeview"
	"github.com/codalotl/mergeview/internal/simplelogger"
	"github.com/codalotl/mergeview/internal/source"
	"github.com/codalotl/mergeview/internal/surface"
	"github.com/codalotl/mergeview/internal/tui"
)

// runTUI is swapped out by tests.
var runTUI = tui.Run

// isTerminal reports whether w is a terminal.
var isTerminal = func(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "mergeview",
		Short:         "mergeview compares an editable file against one or two originals, side by side.",
		Args:          cobra.ArbitraryArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return usageError(fmt.Errorf("unknown command %q", args[0]))
			}
			return cmd.Help()
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError(err)
	})

	root.AddCommand(
		newViewCommand(),
		newDiffCommand(),
		newChunksCommand(),
		newAlignCommand(),
		newConfigCommand(),
		newVersionCommand(),
	)
	return root
}

// addDiffFlags adds the flags shared by every comparing command. Defaults shown in help are the built-in defaults; unset flags defer to the configuration.
func addDiffFlags(fs *pflag.FlagSet) {
	fs.Bool("ignore-whitespace", false, "ignore changes that only add or remove spaces and tabs")
	fs.String("algorithm", string(diff.AlgorithmChars), "diff algorithm: chars or lines")
}

// addSessionFlags adds the flags of commands that run a merge session.
func addSessionFlags(fs *pflag.FlagSet) {
	addDiffFlags(fs)
	fs.Bool("align", true, "pad panes so that corresponding lines line up")
	fs.Bool("collapse", false, "fold stretches that are identical in every pane")
	fs.Int("margin", 2, "unchanged lines kept visible around each change when collapsing")
	fs.String("palette", "auto", "color palette: auto, dark, light or plain")
	fs.String("theme", "", "syntax highlighting theme (a chroma style name, or none)")
}

func newViewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "view EDIT ORIG [ORIG2]",
		Short: "Edit EDIT interactively next to one or two original files.",
		Long: "Edit EDIT interactively next to one or two original files. With two originals, the first is shown left of EDIT and the second right.\n" +
			"Changes are marked live; ctrl+s saves EDIT, ctrl+q quits, f1 shows all keys.",
		Args: argsBetween(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			watch, _ := cmd.Flags().GetBool("watch")

			logger, closeLog := simplelogger.New()
			defer closeLog()

			ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
			defer stop()

			palette, _ := tui.ParsePaletteName(cfg.Palette)
			return runTUI(ctx, tui.Config{
				EditPath:  args[0],
				OrigPaths: args[1:],
				Session:   cfg.sessionOptions(),
				Palette:   palette,
				Theme:     cfg.Theme,
				Wrap:      cfg.Wrap,
				Watch:     watch,
				Logger:    logger,
			})
		},
	}
	addSessionFlags(cmd.Flags())
	cmd.Flags().Bool("wrap", false, "soft-wrap long lines")
	cmd.Flags().Bool("scroll-lock", true, "scroll all panes together")
	cmd.Flags().Bool("watch", false, "reload original files when they change on disk")
	return cmd
}

func newDiffCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diff ORIG EDIT",
		Short: "Print the changes from ORIG to EDIT.",
		Args:  argsBetween(2, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			color, _ := cmd.Flags().GetString("color")
			contextLines, _ := cmd.Flags().GetInt("context")
			if contextLines < 0 {
				return usageError(fmt.Errorf("--context must be >= 0"))
			}

			useColor := false
			switch color {
			case "always":
				useColor = true
			case "never":
			case "auto":
				useColor = isTerminal(cmd.OutOrStdout())
			default:
				return usageError(fmt.Errorf("invalid --color %q (want auto, always or never)", color))
			}

			d, err := computeFiles(commandContext(cmd), args[0], args[1], cfg)
			if err != nil {
				return err
			}
			text := diff.RenderChunks(d, diff.RenderOptions{
				OrigName: args[0],
				EditName: args[1],
				Context:  contextLines,
				Color:    useColor,
			})
			if text != "" && !strings.HasSuffix(text, "\n") {
				text += "\n"
			}
			_, err = io.WriteString(cmd.OutOrStdout(), text)
			return err
		},
	}
	addDiffFlags(cmd.Flags())
	cmd.Flags().String("color", "auto", "colorize output: auto, always or never")
	cmd.Flags().Int("context", 3, "unchanged lines shown around each change")
	return cmd
}

// chunkJSON is a chunk as printed by `mergeview chunks --json`. Lines are 0-based and ranges half-open.
type chunkJSON struct {
	OrigFrom int `json:"origFrom"`
	OrigTo   int `json:"origTo"`
	EditFrom int `json:"editFrom"`
	EditTo   int `json:"editTo"`
}

func newChunksCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chunks ORIG EDIT",
		Short: "Print the changed line ranges between ORIG and EDIT.",
		Long:  "Print the changed line ranges between ORIG and EDIT, one per line, as 0-based half-open ranges.",
		Args:  argsBetween(2, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			asJSON, _ := cmd.Flags().GetBool("json")

			d, err := computeFiles(commandContext(cmd), args[0], args[1], cfg)
			if err != nil {
				return err
			}
			chunks := d.Chunks()

			out := cmd.OutOrStdout()
			if asJSON {
				list := make([]chunkJSON, 0, len(chunks))
				for _, c := range chunks {
					list = append(list, chunkJSON{OrigFrom: c.OrigFrom, OrigTo: c.OrigTo, EditFrom: c.EditFrom, EditTo: c.EditTo})
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(list)
			}
			for _, c := range chunks {
				if _, err := fmt.Fprintln(out, c.String()); err != nil {
					return err
				}
			}
			return nil
		},
	}
	addDiffFlags(cmd.Flags())
	cmd.Flags().Bool("json", false, "print chunks as a JSON array")
	return cmd
}

func newAlignCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "align EDIT ORIG [ORIG2]",
		Short: "Print EDIT and its originals side by side, aligned.",
		Long: "Print EDIT and its originals side by side, the way `mergeview view` shows them, without the interactive UI.\n" +
			"With two originals, the first is printed left of EDIT and the second right.",
		Args: argsBetween(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			width, _ := cmd.Flags().GetInt("width")
			if width <= 0 {
				return usageError(fmt.Errorf("--width must be > 0"))
			}

			files, err := source.Load(commandContext(cmd), args...)
			if err != nil {
				return err
			}

			logger, closeLog := simplelogger.New()
			defer closeLog()

			panes, err := alignFiles(files, cfg, logger)
			if err != nil {
				return err
			}
			palette, _ := tui.ParsePaletteName(cfg.Palette)
			_, err = io.WriteString(cmd.OutOrStdout(), tui.Snapshot(panes, width, palette, cfg.Theme))
			return err
		},
	}
	addSessionFlags(cmd.Flags())
	cmd.Flags().Int("width", 120, "total output width in cells")
	return cmd
}

// alignFiles runs a merge session over files (the edit file first, then one or two originals) and returns the panes in display order.
func alignFiles(files []source.File, cfg Config, logger *zap.Logger) ([]tui.Pane, error) {
	// Marks and folds are computed for the visible range; make everything visible.
	total := 0
	for _, f := range files {
		total += diff.LineCount(f.Text)
	}
	newBuf := func(text string) *surface.Buffer {
		return surface.NewBuffer(text, surface.Options{LineHeight: 1, ClientHeight: total})
	}

	opts := cfg.sessionOptions()
	opts.AlignOptions.MinPad = -1
	opts.ScrollLock = false
	// Nothing waits for timers: Attach and Realign compute synchronously.
	opts.Clock = clock.NewFake(time.Now())
	opts.Logger = logger

	edit := newBuf(files[0].Text)
	s := mergeview.New(edit, opts)
	defer s.Close()

	origs := files[1:]
	sides := []mergeview.Side{mergeview.Right}
	if len(origs) == 2 {
		sides = []mergeview.Side{mergeview.Left, mergeview.Right}
	}
	bufs := make(map[mergeview.Side]*surface.Buffer)
	for i, f := range origs {
		b := newBuf(f.Text)
		if err := s.Attach(sides[i], b); err != nil {
			return nil, fmt.Errorf("attach %s: %w", f.Path, err)
		}
		bufs[sides[i]] = b
	}
	if err := s.Realign(); err != nil {
		return nil, err
	}

	var panes []tui.Pane
	if b := bufs[mergeview.Left]; b != nil {
		panes = append(panes, tui.Pane{Title: origs[0].Path, Filename: origs[0].Path, Buffer: b, Err: s.Err(mergeview.Left)})
	}
	panes = append(panes, tui.Pane{Title: "edit: " + files[0].Path, Filename: files[0].Path, Buffer: edit})
	right := origs[len(origs)-1]
	panes = append(panes, tui.Pane{Title: right.Path, Filename: right.Path, Buffer: bufs[mergeview.Right], Err: s.Err(mergeview.Right)})
	return panes, nil
}

func newConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as JSON.",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(nil)
			if err != nil {
				return err
			}
			return writeConfigJSON(cmd.OutOrStdout(), cfg)
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the mergeview version.",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), strings.TrimSpace(Version))
			return err
		},
	}
}

// computeFiles loads origPath and editPath and diffs them.
func computeFiles(ctx context.Context, origPath, editPath string, cfg Config) (diff.Diff, error) {
	files, err := source.Load(ctx, origPath, editPath)
	if err != nil {
		return diff.Diff{}, err
	}
	d, err := diff.Compute(files[0].Text, files[1].Text, cfg.diffOptions())
	if err != nil {
		return diff.Diff{}, fmt.Errorf("diff %s %s: %w", origPath, editPath, err)
	}
	return d, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
