package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/julianfbeck/panopto-relink-cli/internal/config"
	"github.com/julianfbeck/panopto-relink-cli/internal/download"
)

var (
	thumbRate   string
	thumbOutput string
)

var thumbnailCmd = &cobra.Command{
	Use:   "thumbnail <group>",
	Short: "Save the thumbnail of the session a group can view",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resolver, cfg, history, err := getResolver()
		if err != nil {
			return err
		}
		defer closeHistory(history)

		limiter, err := download.ParseRateLimit(resolveRate(cfg.DefaultRate))
		if err != nil {
			return exitError(exitUsage, err)
		}

		session, err := resolver.Resolve(ctx, args[0])
		if err != nil {
			return exitForLookup(err)
		}
		if session == nil {
			return exitError(exitNotFound, fmt.Errorf("no session found for group %q", args[0]))
		}
		if session.ThumbnailURL == "" {
			return exitError(exitNotFound, fmt.Errorf("session %s has no thumbnail", session.ID))
		}

		inst, err := config.Select(cfg.Instances)
		if err != nil {
			return exitError(exitConfigMissing, err)
		}
		client := newClient(inst)

		outputDir := thumbOutput
		if outputDir == "" {
			dir, err := resolveStoreDir()
			if err != nil {
				return err
			}
			outputDir = filepath.Join(dir, "thumbnails")
		}
		if err := os.MkdirAll(outputDir, 0700); err != nil {
			return err
		}

		resp, err := client.OpenThumbnail(ctx, session.ThumbnailURL)
		if err != nil {
			return exitForLookup(err)
		}
		defer resp.Body.Close()

		path := download.ThumbnailPath(outputDir, session.Name, session.ID, resp.Header.Get("Content-Type"))
		_, err = download.SaveFile(ctx, path, resp.Body, resp.ContentLength, limiter, func(written, total int64) {
			if !quietMode && !jsonOutput {
				printProgress(session.Name, written, total)
			}
		})
		if !quietMode && !jsonOutput {
			fmt.Println()
		}
		if err != nil {
			return exitError(exitUnavailable, err)
		}

		if jsonOutput {
			outputJSON(map[string]string{"session_id": session.ID, "path": path})
			return nil
		}
		printInfo("Saved %s\n", path)
		return nil
	},
}

func init() {
	thumbnailCmd.Flags().StringVar(&thumbRate, "rate", "", "Download rate limit (e.g. 500K, 1M)")
	thumbnailCmd.Flags().StringVar(&thumbOutput, "output", "", "Output directory (default: store/thumbnails)")
	rootCmd.AddCommand(thumbnailCmd)
}

func resolveRate(defaultRate string) string {
	if thumbRate != "" {
		return thumbRate
	}
	return defaultRate
}

func printProgress(name string, done, total int64) {
	if total > 0 {
		percent := float64(done) / float64(total) * 100
		fmt.Printf("\r%s: %.1f%% (%s/%s)", truncateName(name), percent, formatBytes(done), formatBytes(total))
	} else {
		fmt.Printf("\r%s: %s", truncateName(name), formatBytes(done))
	}
}

func truncateName(name string) string {
	if len(name) <= 40 {
		return name
	}
	return name[:37] + "..."
}

func formatBytes(v int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
	)
	if v >= MB {
		return fmt.Sprintf("%.2fMB", float64(v)/float64(MB))
	}
	if v >= KB {
		return fmt.Sprintf("%.2fKB", float64(v)/float64(KB))
	}
	return fmt.Sprintf("%dB", v)
}
