package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/julianfbeck/panopto-relink-cli/internal/store"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect recorded lookups",
}

var (
	historyOutcome   string
	historyLimit     int
	historyOlderThan time.Duration
)

type lookupView struct {
	ID          int64     `json:"id"`
	RequestID   string    `json:"request_id"`
	Group       string    `json:"group"`
	Server      string    `json:"server,omitempty"`
	Outcome     string    `json:"outcome"`
	SessionID   string    `json:"session_id,omitempty"`
	SessionName string    `json:"session_name,omitempty"`
	FolderName  string    `json:"folder_name,omitempty"`
	ThumbURL    string    `json:"thumbnail_url,omitempty"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func newLookupView(l store.Lookup) lookupView {
	return lookupView{
		ID:          l.ID,
		RequestID:   l.RequestID,
		Group:       l.GroupName,
		Server:      l.ServerName.String,
		Outcome:     l.Outcome,
		SessionID:   l.SessionID.String,
		SessionName: l.SessionName.String,
		FolderName:  l.FolderName.String,
		ThumbURL:    l.ThumbURL.String,
		Error:       l.Error.String,
		CreatedAt:   l.CreatedAt,
	}
}

func openHistory() (*store.Store, error) {
	dir, err := resolveStoreDir()
	if err != nil {
		return nil, err
	}
	return store.Open(dir)
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded lookups, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openHistory()
		if err != nil {
			return err
		}
		defer st.Close()

		lookups, err := st.ListLookups(historyOutcome, historyLimit)
		if err != nil {
			return err
		}

		if jsonOutput {
			views := make([]lookupView, 0, len(lookups))
			for _, l := range lookups {
				views = append(views, newLookupView(l))
			}
			outputJSON(views)
			return nil
		}
		for _, l := range lookups {
			printLookupLine(newLookupView(l))
		}
		return nil
	},
}

func printLookupLine(v lookupView) {
	detail := v.SessionName
	if v.Error != "" {
		detail = v.Error
	}
	fmt.Printf("%d\t%s\t%s\t%s\t%s\n", v.ID, v.CreatedAt.Local().Format(time.DateTime), v.Outcome, v.Group, detail)
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a recorded lookup",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return exitError(exitUsage, fmt.Errorf("invalid id"))
		}
		st, err := openHistory()
		if err != nil {
			return err
		}
		defer st.Close()

		l, err := st.GetLookup(id)
		if err != nil {
			return err
		}
		if l == nil {
			return exitError(exitNotFound, fmt.Errorf("lookup %d not found", id))
		}

		v := newLookupView(*l)
		if jsonOutput {
			outputJSON(v)
			return nil
		}
		if plainOutput {
			printLookupLine(v)
			return nil
		}
		fmt.Printf("Lookup %d (%s)\n", v.ID, v.RequestID)
		fmt.Printf("  group:   %s\n", v.Group)
		fmt.Printf("  server:  %s\n", v.Server)
		fmt.Printf("  outcome: %s\n", v.Outcome)
		fmt.Printf("  at:      %s\n", v.CreatedAt.Local().Format(time.RFC1123))
		if v.SessionID != "" {
			fmt.Printf("  session: %s  %s\n", v.SessionID, v.SessionName)
			fmt.Printf("  folder:  %s\n", v.FolderName)
		}
		if v.Error != "" {
			fmt.Printf("  error:   %s\n", v.Error)
		}
		return nil
	},
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete recorded lookups older than a cutoff",
	RunE: func(cmd *cobra.Command, args []string) error {
		if historyOlderThan <= 0 {
			return exitError(exitUsage, fmt.Errorf("--older-than must be positive"))
		}
		st, err := openHistory()
		if err != nil {
			return err
		}
		defer st.Close()

		n, err := st.PruneLookups(time.Now().Add(-historyOlderThan))
		if err != nil {
			return err
		}
		if jsonOutput {
			outputJSON(map[string]int64{"pruned": n})
			return nil
		}
		printInfo("Pruned %d lookup(s)\n", n)
		return nil
	},
}

func init() {
	historyListCmd.Flags().StringVar(&historyOutcome, "outcome", "", "Filter by outcome (found, not_found, remote_unavailable, ...)")
	historyListCmd.Flags().IntVar(&historyLimit, "limit", 50, "Max rows (0 for all)")
	historyPruneCmd.Flags().DurationVar(&historyOlderThan, "older-than", 30*24*time.Hour, "Age cutoff")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyPruneCmd)
	rootCmd.AddCommand(historyCmd)
}
