package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"snapgrid/cmd/snapgrid/feed"
	"snapgrid/internal/config"
	"snapgrid/internal/feedstore"
	"snapgrid/internal/localstore"
	"snapgrid/internal/logging"
)

var (
	// Global flags
	verbose  bool
	dataDir  string
	noSeed   bool
	inMemory bool

	// Logger for the non-interactive subcommands
	logger *zap.Logger
)

// Version is stamped by the build.
var Version = "0.3.0"

// rootCmd launches the interactive feed.
var rootCmd = &cobra.Command{
	Use:   "snapgrid",
	Short: "snapgrid - a photo-sharing feed for your terminal",
	Long: `snapgrid is a local-first photo-sharing feed that lives in your terminal.

Posts, stories, comments and profiles are persisted to a local SQLite file,
seeded with demo data on first run. Every operation goes through the same
latency-simulating store layer the UI was built against, so the app behaves
like it is talking to a real backend.

Run without arguments to open the feed.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// The TUI has its own category logger; zap is for the plumbing
		// subcommands.
		if cmd.CalledAs() == "snapgrid" {
			return nil
		}
		cfg := zap.NewProductionConfig()
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFeed()
	},
}

// seedCmd resets the storage file to the bundled fixtures.
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Reset local storage to the demo fixtures",
	Long: `Deletes every collection and reloads the bundled demo data.

Without --force the command refuses to touch a storage file that already
has content.`,
	RunE: runSeed,
}

var seedForce bool

// exportCmd dumps the collections as JSON.
var exportCmd = &cobra.Command{
	Use:   "export [posts|comments|stories|users]",
	Short: "Dump collections as JSON",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runExport,
}

var exportOut string

// postCmd publishes a post without opening the UI.
var postCmd = &cobra.Command{
	Use:   "post [caption]",
	Short: "Publish a post from the command line",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runPost,
}

var (
	postImage string
	postTags  []string
)

// storiesCmd lists the active stories.
var storiesCmd = &cobra.Command{
	Use:   "stories",
	Short: "List currently active stories",
	RunE:  runStories,
}

// versionCmd prints the version.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the snapgrid version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("snapgrid %s\n", Version)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory (default ~/.snapgrid)")
	rootCmd.PersistentFlags().BoolVar(&noSeed, "no-seed", false, "don't seed absent collections with demo data")
	rootCmd.PersistentFlags().BoolVar(&inMemory, "memory", false, "use in-memory storage (nothing persists)")

	seedCmd.Flags().BoolVar(&seedForce, "force", false, "overwrite existing data")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "write to a file instead of stdout")
	postCmd.Flags().StringVar(&postImage, "image", "", "image URL")
	postCmd.Flags().StringSliceVar(&postTags, "tag", nil, "hashtag (repeatable)")

	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(postCmd)
	rootCmd.AddCommand(storiesCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// ============================================================================
// WIRING
// ============================================================================

// resolveDataDir applies the flag over the environment/default chain.
func resolveDataDir() string {
	if dataDir != "" {
		return dataDir
	}
	return config.DefaultDataDir()
}

// openEnvironment loads config and opens the KV, shared by every command.
func openEnvironment() (*config.Config, localstore.KV, error) {
	dir := resolveDataDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	cfg, err := config.Load(config.ConfigPath(dir))
	if err != nil {
		return nil, nil, err
	}

	if inMemory || cfg.Storage.Backend == "memory" {
		return cfg, localstore.NewMemory(), nil
	}

	kv, err := localstore.OpenSQLite(cfg.StoragePath(dir))
	if err != nil {
		return nil, nil, err
	}
	return cfg, kv, nil
}

func storeOptions(cfg *config.Config, skipSeed bool) feedstore.Options {
	return feedstore.Options{
		Latencies: feedstore.Latencies{
			Read:   cfg.ReadLatency(),
			Write:  cfg.WriteLatency(),
			Mutate: cfg.MutateLatency(),
		},
		SkipSeed: skipSeed,
	}
}

// runFeed wires the whole app and hands control to bubbletea.
func runFeed() error {
	dir := resolveDataDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	if err := logging.Initialize(dir); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: logging unavailable: %v\n", err)
	}
	defer logging.CloseAll()

	cfg, kv, err := openEnvironment()
	if err != nil {
		return err
	}
	defer kv.Close()

	stores := feedstore.Open(kv, storeOptions(cfg, noSeed))
	logging.Boot("snapgrid %s starting: data=%s backend=%s", Version, dir, cfg.Storage.Backend)

	// Watch the storage file so edits from another snapgrid process (or a
	// curious user with sqlite3) show up without a restart.
	var watcher *localstore.Watcher
	if sq, ok := kv.(*localstore.SQLite); ok && cfg.Storage.Watch {
		watcher, err = localstore.NewWatcher(sq.Path())
		if err != nil {
			logging.BootError("storage watcher unavailable: %v", err)
			watcher = nil
		} else {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			if err := watcher.Start(ctx); err != nil {
				logging.BootError("storage watcher failed to start: %v", err)
				watcher = nil
			} else {
				defer watcher.Stop()
			}
		}
	}

	model := feed.New(cfg, stores, watcher)
	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("UI error: %w", err)
	}
	return nil
}

// ============================================================================
// SUBCOMMANDS
// ============================================================================

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, kv, err := openEnvironment()
	if err != nil {
		return err
	}
	defer kv.Close()

	if !seedForce {
		keys, err := kv.Keys()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			return fmt.Errorf("storage already has data (%d keys); use --force to overwrite", len(keys))
		}
	}

	for _, key := range []string{
		feedstore.KeyPosts, feedstore.KeyComments,
		feedstore.KeyStories, feedstore.KeyUsers, feedstore.KeyCurrentUser,
	} {
		if err := kv.Delete(key); err != nil {
			return fmt.Errorf("failed to clear %s: %w", key, err)
		}
	}

	// Opening with seeding enabled repopulates every absent collection.
	feedstore.Open(kv, storeOptions(cfg, false))
	logger.Info("storage seeded", zap.String("dir", resolveDataDir()))
	fmt.Println("Demo data loaded.")
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	_, kv, err := openEnvironment()
	if err != nil {
		return err
	}
	defer kv.Close()

	keysByName := map[string]string{
		"posts":    feedstore.KeyPosts,
		"comments": feedstore.KeyComments,
		"stories":  feedstore.KeyStories,
		"users":    feedstore.KeyUsers,
	}

	want := keysByName
	if len(args) == 1 {
		key, ok := keysByName[args[0]]
		if !ok {
			return fmt.Errorf("unknown collection %q", args[0])
		}
		want = map[string]string{args[0]: key}
	}

	out := make(map[string]json.RawMessage, len(want))
	for name, key := range want {
		blob, ok, err := kv.Get(key)
		if err != nil {
			return err
		}
		if !ok {
			blob = []byte("[]")
		}
		out[name] = blob
	}

	dst := os.Stdout
	if exportOut != "" {
		f, err := os.Create(exportOut)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		dst = f
	}

	enc := json.NewEncoder(dst)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func runPost(cmd *cobra.Command, args []string) error {
	cfg, kv, err := openEnvironment()
	if err != nil {
		return err
	}
	defer kv.Close()

	stores := feedstore.Open(kv, storeOptions(cfg, noSeed))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	post, err := stores.Posts.Create(ctx, feedstore.PostDraft{
		UserID:   stores.Users.CurrentUserID(),
		ImageURL: postImage,
		Caption:  strings.Join(args, " "),
		Hashtags: postTags,
	})
	if err != nil {
		return err
	}

	logger.Info("post published", zap.Int("id", post.ID))
	fmt.Printf("Published post %d.\n", post.ID)
	return nil
}

func runStories(cmd *cobra.Command, args []string) error {
	cfg, kv, err := openEnvironment()
	if err != nil {
		return err
	}
	defer kv.Close()

	stores := feedstore.Open(kv, storeOptions(cfg, noSeed))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	byUser, err := stores.Stories.ActiveByUser(ctx)
	if err != nil {
		return err
	}
	if len(byUser) == 0 {
		fmt.Println("No active stories.")
		return nil
	}

	for userID, stories := range byUser {
		user, err := stores.Users.GetByID(ctx, userID)
		name := fmt.Sprintf("user %d", userID)
		if err == nil {
			name = "@" + user.Username
		}
		fmt.Printf("%s (%d):\n", name, len(stories))
		for _, s := range stories {
			marker := " "
			if s.Viewed {
				marker = "✓"
			}
			age := time.Since(s.Timestamp).Round(time.Minute)
			fmt.Printf("  %s [%s] %s (%s ago)\n", marker, s.Type, truncate(s.Content, 60), age)
		}
	}
	return nil
}

// truncate shortens s to at most n runes. Rune-indexed so multibyte story
// content is never cut mid-character.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
