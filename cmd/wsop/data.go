package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/workshopops/workshop/internal/store"
	"github.com/workshopops/workshop/internal/ui"
	"github.com/workshopops/workshop/internal/vault"
)

var importCmd = &cobra.Command{
	Use:     "import <file.toml>",
	GroupID: "data",
	Short:   "Load rows, attachments and settings from a TOML file",
	Long: `Load rows, attachments and settings from a TOML fixture.

Each [[rows]] entry names its table and fields. Rows with an id replace the
stored row; rows without one get the next id. [[rows.blobs]] attach files
relative to the fixture, and [settings] sets datastore settings.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		db := openDB(ctx)
		defer db.Close()

		start := time.Now()
		res, err := db.ImportFile(ctx, args[0])
		if err != nil {
			fatalf("%v", err)
		}

		fmt.Printf("%s Imported %s in %v\n", ui.RenderPass("✓"), args[0], time.Since(start).Round(time.Millisecond))
		fmt.Printf("   Rows: %d\n", res.Rows)
		fmt.Printf("   Attachments: %d\n", res.Blobs)
		fmt.Printf("   Settings: %d\n", res.Settings)
	},
}

var remoteCmd = &cobra.Command{
	Use:     "remote",
	GroupID: "data",
	Short:   "Configure the vault's git remote",
}

// remoteFlags maps remote set flags to their settings keys.
var remoteFlags = []struct {
	flag, key, usage string
}{
	{"url", store.SettingGitRepoURL, "Repository URL (https)"},
	{"token", store.SettingGitToken, "Access token sent as basic auth"},
	{"branch", store.SettingGitBranch, "Branch to push and pull (default: main)"},
	{"cors-proxy", store.SettingGitCORSProxy, "Proxy prefix for the repository URL"},
}

var remoteSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Set remote settings",
	Long: `Set remote settings. Only the flags given are changed; an empty value
clears the setting.

  wsop remote set --url https://github.com/me/vault.git --token ghp_...`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		db := openDB(ctx)
		defer db.Close()

		changed := 0
		for _, f := range remoteFlags {
			if !cmd.Flags().Changed(f.flag) {
				continue
			}
			value, _ := cmd.Flags().GetString(f.flag)
			if err := db.SetSetting(ctx, f.key, value); err != nil {
				fatalf("%v", err)
			}
			changed++
		}
		if changed == 0 {
			fatalf("nothing to set (use --url, --token, --branch or --cors-proxy)")
		}
		fmt.Printf("%s Updated %d remote settings\n", ui.RenderPass("✓"), changed)
	},
}

var remoteShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show remote settings",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		db := openDB(ctx)
		defer db.Close()

		remote, err := vault.LoadRemote(ctx, db)
		if err != nil {
			fatalf("%v", err)
		}

		fmt.Printf("\n%s Remote\n\n", ui.RenderAccent("🔗"))
		fmt.Printf("   URL: %s\n", orNotSet(remote.URL))
		fmt.Printf("   Token: %s\n", maskToken(remote.Token))
		fmt.Printf("   Branch: %s\n", remote.Branch)
		if remote.CORSProxy != "" {
			fmt.Printf("   CORS proxy: %s\n", remote.CORSProxy)
			fmt.Printf("   Fetch URL: %s\n", remote.FetchURL())
		}
		if !remote.Configured() {
			fmt.Printf("\n%s Push and pull are disabled until a URL and token are set\n", ui.RenderWarn("⚠"))
		}
		fmt.Println()
	},
}

func orNotSet(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}

func init() {
	for _, f := range remoteFlags {
		remoteSetCmd.Flags().String(f.flag, "", f.usage)
	}
	remoteCmd.AddCommand(remoteSetCmd, remoteShowCmd)

	rootCmd.AddCommand(importCmd, remoteCmd)
}
