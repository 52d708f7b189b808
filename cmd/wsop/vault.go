package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/workshopops/workshop/internal/config"
	"github.com/workshopops/workshop/internal/statusfeed"
	"github.com/workshopops/workshop/internal/ui"
	"github.com/workshopops/workshop/internal/vault"
	"github.com/workshopops/workshop/internal/vcs"
	"github.com/workshopops/workshop/internal/vcs/git"
	"github.com/workshopops/workshop/internal/watch"
)

var vaultCmd = &cobra.Command{
	Use:     "vault",
	GroupID: "vault",
	Short:   "Choose or show the vault directory",
}

var vaultSetCmd = &cobra.Command{
	Use:   "set <dir>",
	Short: "Store the vault directory",
	Long: `Store <dir> as the default vault directory.

The directory is created if it does not exist and must be writable. Later
commands use it unless --vault is given.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		db := openDB(ctx)
		defer db.Close()

		provider := vault.NewDirProvider(db)
		h := vault.Dir(args[0])
		state, err := provider.Permission(ctx, h, true)
		if err != nil {
			fatalf("checking %s: %v", args[0], err)
		}
		if state != vault.PermissionGranted {
			fatalf("cannot write to %s (%s)", args[0], state)
		}
		if err := provider.Persist(ctx, h); err != nil {
			fatalf("%v", err)
		}

		root := h.Root()
		if stored, err := provider.Persisted(ctx); err == nil && stored != nil {
			root = stored.Root()
		}
		fmt.Printf("%s Vault directory set to %s\n", ui.RenderPass("✓"), root)
	},
}

var vaultShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the vault directory and its access state",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		db := openDB(ctx)
		defer db.Close()

		provider := vault.NewDirProvider(db)
		h := vaultHandle()
		source := "--vault"
		if h == nil {
			source = "stored"
			var err error
			if h, err = provider.Persisted(ctx); err != nil {
				fatalf("%v", err)
			}
		}
		if h == nil {
			fmt.Printf("\n%s No vault directory configured\n", ui.RenderWarn("⚠"))
			fmt.Printf("   Run 'wsop vault set <dir>' to choose one\n\n")
			return
		}

		state, err := provider.Permission(ctx, h, false)
		if err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("\n%s Vault\n\n", ui.RenderAccent("📁"))
		fmt.Printf("   Directory: %s (%s)\n", h.Root(), source)
		fmt.Printf("   Access: %s\n", state)
		fmt.Printf("   History: %s\n\n", historyLine(ctx, h.Root()))
	},
}

// historyLine describes the git history kept in the vault directory.
func historyLine(ctx context.Context, root string) string {
	g, err := git.New(root)
	if err != nil {
		if errors.Is(err, vcs.ErrVCSNotAvailable) {
			return "git not installed"
		}
		return err.Error()
	}
	version, err := g.Version(ctx)
	if err != nil {
		return err.Error()
	}
	if !g.IsRepo() {
		return fmt.Sprintf("not initialized (git %s)", version)
	}
	return fmt.Sprintf("initialized (git %s)", version)
}

var syncCmd = &cobra.Command{
	Use:     "sync [project-id]",
	GroupID: "vault",
	Short:   "Write the datastore into the vault",
	Long: `Write every project and global table into the vault and commit once.

With a project id only that project folder is rewritten and nothing is
committed.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		db := openDB(ctx)
		defer db.Close()
		engine := newEngine(db)

		if len(args) == 1 {
			id, err := parseID(args[0])
			if err != nil {
				fatalf("%v", err)
			}
			fmt.Printf("%s Syncing project %d...\n", ui.RenderAccent("🔄"), id)
			res := engine.SyncProject(ctx, id, vaultHandle())
			printResult(res)
			if !res.OK() {
				os.Exit(1)
			}
			return
		}

		fmt.Printf("%s Syncing vault...\n", ui.RenderAccent("🔄"))
		rep := engine.SyncAll(ctx, vaultHandle())
		printReport(rep)
		if !rep.OK() {
			os.Exit(1)
		}
	},
}

var commitCmd = &cobra.Command{
	Use:     "commit",
	GroupID: "vault",
	Short:   "Snapshot the vault into its git history",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		db := openDB(ctx)
		defer db.Close()

		message, _ := cmd.Flags().GetString("message")
		id, ok := newEngine(db).Commit(ctx, message, vaultHandle())
		if !ok {
			fatalf("commit failed, see log")
		}
		fmt.Printf("%s Committed %s\n", ui.RenderPass("✓"), ui.RenderAccent(id))
	},
}

var pushCmd = &cobra.Command{
	Use:     "push",
	GroupID: "vault",
	Short:   "Push the vault history to the configured remote",
	Run: func(cmd *cobra.Command, args []string) {
		runRemote(cmd.Context(), "push", (*vault.Engine).Push)
	},
}

var pullCmd = &cobra.Command{
	Use:     "pull",
	GroupID: "vault",
	Short:   "Merge the remote history into the vault",
	Run: func(cmd *cobra.Command, args []string) {
		runRemote(cmd.Context(), "pull", (*vault.Engine).Pull)
	},
}

func runRemote(ctx context.Context, op string, fn func(*vault.Engine, context.Context, vault.Handle) error) {
	db := openDB(ctx)
	defer db.Close()

	remote, err := vault.LoadRemote(ctx, db)
	if err != nil {
		fatalf("%v", err)
	}
	if !remote.Configured() {
		fmt.Printf("%s No remote configured, nothing to %s\n", ui.RenderWarn("⚠"), op)
		fmt.Printf("   Run 'wsop remote set --url <url> --token <token>'\n")
		return
	}

	if err := fn(newEngine(db), ctx, vaultHandle()); err != nil {
		switch {
		case errors.Is(err, vault.ErrNoHandle):
			fatalf("%v (run 'wsop vault set <dir>')", err)
		case errors.Is(err, vcs.ErrAuth):
			fatalf("%s failed: %v (update it with 'wsop remote set --token')", op, err)
		case vcs.IsUserActionRequired(err):
			fatalf("%s failed: %v (run 'wsop pull' and resolve before pushing)", op, err)
		default:
			fatalf("%s failed: %v", op, err)
		}
	}
	fmt.Printf("%s %s %s (%s)\n", ui.RenderPass("✓"), pastTense(op), remote.URL, remote.Branch)
}

func pastTense(op string) string {
	if op == "push" {
		return "Pushed to"
	}
	return "Pulled from"
}

var watchCmd = &cobra.Command{
	Use:     "watch",
	GroupID: "vault",
	Short:   "Sync the vault whenever the datastore changes",
	Long: `Watch the datastore file and run a full vault sync after writes settle.

Failed syncs are retried a bounded number of times. With --feed-port the
sync state is served over WebSocket at ws://127.0.0.1:<port>/ws and as JSON
at /status. SIGHUP queues a sync without waiting for a write.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		db := openDB(ctx)
		defer db.Close()

		port := cfg.Feed.Port
		if cmd.Flags().Changed("feed-port") {
			port, _ = cmd.Flags().GetInt("feed-port")
		}
		noInitial, _ := cmd.Flags().GetBool("no-initial")
		autoPush, _ := cmd.Flags().GetBool("push")

		wcfg := &watch.Config{
			Debounce:    cfg.Watch.Debounce,
			MaxRetries:  cfg.Watch.MaxRetries,
			RetryWait:   cfg.Watch.RetryWait,
			InitialSync: !noInitial,
			AutoPush:    autoPush,
			Handle:      vaultHandle(),
			Logger:      sink.Component("watch"),
		}

		if port > 0 {
			feed := statusfeed.NewServer(&statusfeed.Config{
				Port:   port,
				Logger: sink.Component("feed"),
			})
			if err := feed.Start(); err != nil {
				fatalf("starting status feed: %v", err)
			}
			defer func() { _ = feed.Stop() }()
			wcfg.Publisher = feed
			fmt.Printf("%s Status feed at ws://%s/ws\n", ui.RenderAccent("📡"), feed.Addr())
		}

		d, err := watch.NewWithConfig(newEngine(db), db.Path(), wcfg)
		if err != nil {
			fatalf("%v", err)
		}

		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		defer signal.Stop(hup)
		go func() {
			for {
				select {
				case <-hup:
					d.Trigger("SIGHUP")
				case <-ctx.Done():
					return
				}
			}
		}()

		fmt.Printf("%s Watching %s (debounce %s)\n", ui.RenderAccent("🚀"), db.Path(), wcfg.Debounce)
		fmt.Printf("   Press Ctrl+C to stop, send SIGHUP to sync now\n")
		if err := d.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			fatalf("%v", err)
		}

		snap := d.Session().Snapshot()
		fmt.Printf("\n%s Stopped (%s)\n", ui.RenderPass("✓"), ui.RenderStatus(snap.Label, snap.Color))
		if snap.LastError != "" {
			fmt.Printf("   Last error: %s\n", strings.TrimSpace(snap.LastError))
		}
	},
}

func init() {
	vaultCmd.AddCommand(vaultSetCmd, vaultShowCmd)

	commitCmd.Flags().StringP("message", "m", "", "Commit message (default: \"Vault sync <time>\")")

	watchCmd.Flags().Int("feed-port", 0, fmt.Sprintf("Serve sync state on this port (default: %s)", config.KeyFeedPort))
	watchCmd.Flags().Bool("no-initial", false, "Do not sync once at startup")
	watchCmd.Flags().Bool("push", false, "Push after every successful sync")

	rootCmd.AddCommand(vaultCmd, syncCmd, commitCmd, pushCmd, pullCmd, watchCmd)
}
