package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/workshopops/workshop/internal/store"
	"github.com/workshopops/workshop/internal/ui"
	"github.com/workshopops/workshop/internal/vault"
)

// fatalf prints an error and exits.
func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

// openDB opens the configured datastore and makes sure its schema exists.
func openDB(ctx context.Context) *store.DB {
	db, err := store.Open(cfg.DB)
	if err != nil {
		fatalf("opening datastore: %v", err)
	}
	if err := db.InitSchema(ctx); err != nil {
		_ = db.Close()
		fatalf("initializing schema: %v", err)
	}
	return db
}

func newEngine(db *store.DB) *vault.Engine {
	return vault.New(vault.Options{
		Tables:   db,
		Settings: db,
		Handles:  vault.NewDirProvider(db),
		Logger:   sink.Component("vault"),
	})
}

// vaultHandle returns the --vault / config directory, or nil to fall back to
// the stored one.
func vaultHandle() vault.Handle {
	if cfg.Vault == "" {
		return nil
	}
	return vault.Dir(cfg.Vault)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q: must be a positive integer", s)
	}
	return id, nil
}

// maskToken keeps the last four characters of a token.
func maskToken(token string) string {
	switch {
	case token == "":
		return "(not set)"
	case len(token) <= 4:
		return strings.Repeat("*", len(token))
	default:
		return strings.Repeat("*", len(token)-4) + token[len(token)-4:]
	}
}

func printResult(res vault.Result) {
	if res.Skipped {
		fmt.Printf("%s Skipped: %v\n", ui.RenderWarn("⚠"), res.Reason)
		return
	}
	mark := ui.RenderPass("✓")
	if !res.OK() {
		mark = ui.RenderWarn("⚠")
	}
	fmt.Printf("%s Wrote %d files\n", mark, res.Files)
	for _, f := range res.Failures {
		fmt.Printf("   %s %s\n", ui.RenderFail("✗"), f)
	}
}

func printReport(rep vault.Report) {
	printResult(rep.Result)
	if rep.Skipped {
		return
	}
	fmt.Printf("   Projects: %d\n", rep.Projects)
	if rep.Commit != "" {
		fmt.Printf("   Commit: %s\n", ui.RenderAccent(rep.Commit))
	}
}
