package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/ilyakaznacheev/cleanenv"

	"github.com/Lllllllleong/caresync/internal/board"
	"github.com/Lllllllleong/caresync/internal/client"
	"github.com/Lllllllleong/caresync/internal/tui"
)

// Version information set via ldflags
var (
	version = "dev"
	commit  = "none"
)

type settings struct {
	// ServerURL is the CareSync deployment. Empty runs the demo board offline.
	ServerURL string `env:"CARESYNC_URL"`
	Token     string `env:"CARESYNC_TOKEN"`
	FamilyID  string `env:"CARESYNC_FAMILY_ID"`
	LogFile   string `env:"CARESYNC_LOG_FILE"`
}

func main() {
	if len(os.Args) > 1 && (os.Args[1] == "--version" || os.Args[1] == "-v") {
		fmt.Printf("caresync-tui %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	var s settings
	if err := cleanenv.ReadEnv(&s); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading settings: %v\n", err)
		os.Exit(1)
	}

	// The alternate screen owns stdout, so logs go to a file or nowhere.
	var logOut io.Writer = io.Discard
	if s.LogFile != "" {
		f, err := os.OpenFile(s.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening log file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		logOut = f
	}
	logger := slog.New(slog.NewJSONHandler(logOut, nil))
	slog.SetDefault(logger)

	b, err := newBoard(s, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading board: %v\n", err)
		os.Exit(1)
	}

	app := tui.NewApp(b)
	defer app.Close()
	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running application: %v\n", err)
		os.Exit(1)
	}
}

// newBoard picks the board for the settings: the offline demo family, the
// demo family backed by a server for uploads and chat, or a real family
// whose tasks live on the server.
func newBoard(s settings, logger *slog.Logger) (*board.Board, error) {
	store := board.NewStore()
	if s.ServerURL == "" {
		b := board.New(store, nil, board.WithLogger(logger))
		b.LoadDemo()
		return b, nil
	}

	var opts []client.Option
	if s.Token != "" {
		opts = append(opts, client.WithToken(s.Token))
	}
	api := client.New(s.ServerURL, opts...)

	if s.FamilyID == "" || s.FamilyID == board.DemoFamilyID {
		b := board.New(store, api, board.WithLogger(logger))
		b.LoadDemo()
		return b, nil
	}

	b := board.New(store, api, board.WithLogger(logger), board.WithRemoteTasks())
	store.Dispatch(board.SetCurrentFamily{FamilyID: s.FamilyID})
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := b.Refresh(ctx); err != nil {
		return nil, err
	}
	return b, nil
}
