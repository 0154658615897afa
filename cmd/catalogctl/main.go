package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"tubeplayer/internal/catalog"
	"tubeplayer/internal/logging"
	"tubeplayer/internal/startup"

	"golang.org/x/term"
)

const (
	// Default timeout for catalog operations
	defaultTimeout = 5 * time.Minute
	// Default database directory path
	defaultDatabaseDir = "/data"
)

// cli holds the process streams so commands can be exercised in tests.
type cli struct {
	stdout io.Writer
	stderr io.Writer
	// confirm asks a yes/no question. Nil means no terminal is attached.
	confirm func(question string) bool
}

func main() {
	if os.Getenv("LOG_LEVEL") == "" {
		logging.SetLevel(logging.LevelWarn)
	}

	// Create a context that cancels on interrupt signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := cli{stdout: os.Stdout, stderr: os.Stderr}
	if term.IsTerminal(int(os.Stdin.Fd())) {
		c.confirm = terminalConfirm(os.Stdin, os.Stdout)
	}

	databaseDir := os.Getenv("DATABASE_DIR")
	if databaseDir == "" {
		databaseDir = defaultDatabaseDir
	}

	code := c.run(ctx, filepath.Join(databaseDir, startup.DatabaseFile), os.Args[1:])
	stop()
	os.Exit(code)
}

// terminalConfirm reads a y/n answer from the terminal.
func terminalConfirm(in io.Reader, out io.Writer) func(string) bool {
	reader := bufio.NewReader(in)
	return func(question string) bool {
		fmt.Fprintf(out, "%s [y/N]: ", question)
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return false
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes"
	}
}

// run executes one command against the catalog at dbPath and returns the
// process exit code.
func (c cli) run(ctx context.Context, dbPath string, args []string) int {
	assumeYes := false
	if len(args) > 0 && args[0] == "-y" {
		assumeYes = true
		args = args[1:]
	}
	if len(args) == 0 {
		c.printUsage()
		return 2
	}

	command, rest := args[0], args[1:]
	switch command {
	case "stats", "list", "export":
	case "verify", "merge", "import":
		if len(rest) != 1 {
			fmt.Fprintf(c.stderr, "Error: %s needs a catalog file\n", command)
			return 2
		}
	case "help", "-h", "--help":
		c.printUsage()
		return 0
	default:
		fmt.Fprintf(c.stderr, "Unknown command: %s\n", sanitizeCommand(command))
		c.printUsage()
		return 2
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	// verify never needs the live catalog.
	if command == "verify" {
		return c.verify(ctx, rest[0])
	}

	if command == "merge" || command == "import" {
		if !c.confirmed(assumeYes, fmt.Sprintf("%s %s into %s?", strings.ToUpper(command[:1])+command[1:], rest[0], dbPath)) {
			fmt.Fprintln(c.stderr, "Aborted.")
			return 1
		}
	}

	store, err := catalog.Open(ctx, dbPath, nil)
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: Failed to open catalog: %v\n", err)
		fmt.Fprintf(c.stderr, "Make sure DATABASE_DIR is set correctly (current: %s)\n", filepath.Dir(dbPath))
		return 1
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(c.stderr, "Warning: failed to close catalog: %v\n", err)
		}
	}()

	switch command {
	case "stats":
		return c.stats(ctx, store)
	case "list":
		return c.list(ctx, store, rest)
	case "export":
		if len(rest) != 1 {
			fmt.Fprintln(c.stderr, "Error: export needs a destination file")
			return 2
		}
		return c.transfer(ctx, store, "Exported to", rest[0], store.Export)
	case "merge":
		return c.transfer(ctx, store, "Merged", rest[0], store.Merge)
	default:
		return c.transfer(ctx, store, "Imported", rest[0], store.Import)
	}
}

func (c cli) confirmed(assumeYes bool, question string) bool {
	if assumeYes {
		return true
	}
	if c.confirm == nil {
		fmt.Fprintln(c.stderr, "Error: no terminal to confirm on, pass -y")
		return false
	}
	return c.confirm(question)
}

func (c cli) verify(ctx context.Context, path string) int {
	if err := catalog.Verify(ctx, path); err != nil {
		fmt.Fprintf(c.stderr, "Invalid catalog: %v\n", err)
		return 1
	}
	fmt.Fprintf(c.stdout, "%s is a valid catalog\n", path)
	return 0
}

func (c cli) stats(ctx context.Context, store *catalog.Store) int {
	st, err := store.Stats(ctx)
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintf(c.stdout, "Catalog:   %s\n", store.Path())
	fmt.Fprintf(c.stdout, "Playlists: %d\n", st.Playlists)
	fmt.Fprintf(c.stdout, "Videos:    %d\n", st.Videos)
	return 0
}

func (c cli) list(ctx context.Context, store *catalog.Store, args []string) int {
	tw := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	if len(args) == 0 {
		playlists, err := store.Playlists(ctx)
		if err != nil {
			fmt.Fprintf(c.stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Fprintln(tw, "ID\tTITLE\tVIDEOS")
		for _, p := range playlists {
			fmt.Fprintf(tw, "%d\t%s\t%d\n", p.ID, p.Title, p.Size)
		}
		return 0
	}

	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		fmt.Fprintf(c.stderr, "Error: invalid playlist id %q\n", args[0])
		return 2
	}
	videos, err := store.PlaylistVideos(ctx, id, catalog.VideoOrder{})
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintln(tw, "ID\tVIDEO ID\tTITLE\tPLAYTIME\tVOLUME\tPLAYED")
	for _, v := range videos {
		played := "never"
		if !v.TimePlayed.IsZero() {
			played = v.TimePlayed.Local().Format(time.DateTime)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s\n",
			v.ID, v.VideoID, v.Title, time.Duration(v.Playtime)*time.Second, v.Volume, played)
	}
	return 0
}

func (c cli) transfer(ctx context.Context, store *catalog.Store, done, path string, fn func(context.Context, string) error) int {
	abs, err := filepath.Abs(path)
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return 1
	}
	if err := fn(ctx, abs); err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintf(c.stdout, "%s %s\n", done, abs)
	return c.stats(ctx, store)
}

// sanitizeCommand returns a safe representation of a command string for display.
// It uses an allowlist approach, replacing any character that is not alphanumeric,
// a hyphen, or an underscore with '_'.
func sanitizeCommand(cmd string) string {
	var b strings.Builder
	b.Grow(len(cmd))
	for _, r := range cmd {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

func (c cli) printUsage() {
	fmt.Fprintln(c.stdout, "TubePlayer Catalog Tool")
	fmt.Fprintln(c.stdout, "")
	fmt.Fprintln(c.stdout, "Usage: catalogctl [-y] <command> [argument]")
	fmt.Fprintln(c.stdout, "")
	fmt.Fprintln(c.stdout, "Commands:")
	fmt.Fprintln(c.stdout, "  stats            - Show playlist and video totals")
	fmt.Fprintln(c.stdout, "  list [playlist]  - List playlists, or the videos of a playlist")
	fmt.Fprintln(c.stdout, "  verify <file>    - Check that a file is a valid catalog")
	fmt.Fprintln(c.stdout, "  export <file>    - Copy the catalog to a file")
	fmt.Fprintln(c.stdout, "  merge <file>     - Add the playlists of another catalog")
	fmt.Fprintln(c.stdout, "  import <file>    - Replace the catalog with another file")
	fmt.Fprintln(c.stdout, "")
	fmt.Fprintln(c.stdout, "Environment:")
	fmt.Fprintf(c.stdout, "  DATABASE_DIR - Path to database directory (default: %s)\n", defaultDatabaseDir)
}
