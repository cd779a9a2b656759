package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/julianfbeck/panopto-relink-cli/internal/notice"
	"github.com/julianfbeck/panopto-relink-cli/internal/panopto"
	"github.com/julianfbeck/panopto-relink-cli/internal/relink"
	"github.com/julianfbeck/panopto-relink-cli/internal/ui"
)

var (
	noticeFormat       string
	resolveFrom        string
	resolveRPS         float64
	resolveInteractive bool
)

type resolveResult struct {
	Group   string           `json:"group"`
	Found   bool             `json:"found"`
	Session *panopto.Session `json:"session,omitempty"`
	Kind    string           `json:"kind,omitempty"`
	Error   string           `json:"error,omitempty"`
}

func newResolveResult(group string, session *panopto.Session, err error) resolveResult {
	res := resolveResult{Group: group, Found: session != nil, Session: session}
	if err != nil {
		res.Kind = relink.KindOf(err).String()
		res.Error = err.Error()
	}
	return res
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <group>",
	Short: "Find the session a provider group can view",
	Args: func(cmd *cobra.Command, args []string) error {
		if resolveInteractive || resolveFrom != "" {
			return cobra.MaximumNArgs(1)(cmd, args)
		}
		return cobra.ExactArgs(1)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := validateNoticeFormat(noticeFormat); err != nil {
			return err
		}
		resolver, cfg, history, err := getResolver()
		if err != nil {
			return err
		}
		defer closeHistory(history)

		if resolveFrom != "" {
			return runBatch(resolver, resolveFrom)
		}

		initial := ""
		if len(args) > 0 {
			initial = args[0]
		}
		if !resolveInteractive && strings.TrimSpace(initial) == "" {
			return exitError(exitUsage, relink.ErrEmptyGroupName)
		}
		if resolveInteractive {
			if noInput {
				return exitError(exitUsage, fmt.Errorf("interactive lookup disabled by --no-input"))
			}
			return runInteractive(resolver, cfg.RemediationURL, initial)
		}

		session, err := resolver.Resolve(ctx, initial)
		if jsonOutput {
			outputJSON(newResolveResult(initial, session, err))
		} else if err != nil || session == nil || noticeFormat != "" {
			if err := writeNotice(os.Stdout, cfg.RemediationURL, session); err != nil {
				return err
			}
		} else {
			printSession(session)
		}

		if err != nil {
			return exitForLookup(err)
		}
		if session == nil {
			return exitError(exitNotFound, fmt.Errorf("no session found for group %q", initial))
		}
		return nil
	},
}

func init() {
	resolveCmd.Flags().StringVar(&noticeFormat, "notice", "", "Render the re-link notice as html or text")
	resolveCmd.Flags().StringVar(&resolveFrom, "from", "", "Resolve every group name in a file (- for stdin)")
	resolveCmd.Flags().Float64Var(&resolveRPS, "rps", 2, "Lookups per second in batch mode (0 for no limit)")
	resolveCmd.Flags().BoolVarP(&resolveInteractive, "interactive", "i", false, "Interactive lookup UI")
	rootCmd.AddCommand(resolveCmd)
}

func validateNoticeFormat(format string) error {
	switch format {
	case "", "text", "html":
		return nil
	}
	return exitError(exitUsage, fmt.Errorf("unknown notice format %q (use html or text)", format))
}

func writeNotice(w io.Writer, remediationURL string, session *panopto.Session) error {
	data := notice.Data{RemediationURL: remediationURL, Session: session}
	if noticeFormat == "html" {
		return notice.HTML(w, data)
	}
	_, err := io.WriteString(w, notice.Terminal(data, plainOutput || noColor))
	return err
}

func printSession(s *panopto.Session) {
	if plainOutput {
		fmt.Printf("%s\t%s\t%s\t%s\n", s.ID, s.Name, s.FolderName, s.ThumbnailURL)
		return
	}
	fmt.Printf("%s  %s\n", s.ID, s.Name)
	if s.FolderName != "" {
		fmt.Printf("  folder:    %s\n", s.FolderName)
	}
	if s.ThumbnailURL != "" {
		fmt.Printf("  thumbnail: %s\n", s.ThumbnailURL)
	}
}

func runBatch(resolver *relink.Resolver, path string) error {
	names, err := readGroupNames(path)
	if err != nil {
		return err
	}

	var limiter *rate.Limiter
	if resolveRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(resolveRPS), 1)
	}

	var results []resolveResult
	failed := 0
	err = relink.Batch(ctx, resolver, names, limiter, func(r relink.BatchResult) {
		res := newResolveResult(r.Group, r.Session, r.Err)
		if r.Err != nil || r.Session == nil {
			failed++
		}
		if jsonOutput {
			results = append(results, res)
			return
		}
		printBatchLine(res)
	})
	if jsonOutput {
		outputJSON(results)
	}
	if err != nil {
		return err
	}
	if failed > 0 {
		printInfo("%d of %d lookups did not return a session\n", failed, len(names))
	}
	return nil
}

func printBatchLine(res resolveResult) {
	switch {
	case res.Error != "":
		fmt.Printf("%s\t%s\t%s\n", res.Group, res.Kind, res.Error)
	case res.Session == nil:
		fmt.Printf("%s\t%s\n", res.Group, "not_found")
	default:
		fmt.Printf("%s\t%s\t%s\t%s\n", res.Group, res.Session.ID, res.Session.Name, res.Session.FolderName)
	}
}

func readGroupNames(path string) ([]string, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, exitError(exitUsage, err)
		}
		defer f.Close()
		r = f
	}

	// One name per line, kept verbatim apart from the line ending.
	var names []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if trimmed := strings.TrimSpace(line); trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		names = append(names, line)
	}
	return names, scanner.Err()
}

func runInteractive(resolver *relink.Resolver, remediationURL, initial string) error {
	var (
		mu       sync.Mutex
		sessions = map[string]*panopto.Session{}
	)
	picked, err := ui.InteractiveLookup(ctx, "Panopto Session Lookup", initial, func(ctx context.Context, group string) (ui.LookupEntry, error) {
		session, err := resolver.Resolve(ctx, group)
		mu.Lock()
		sessions[group] = session
		mu.Unlock()
		entry := ui.LookupEntry{Group: group, Found: session != nil}
		if err != nil {
			entry.Detail = relink.KindOf(err).String()
			return entry, nil
		}
		if session != nil {
			entry.SessionID = session.ID
			entry.SessionName = session.Name
			entry.FolderName = session.FolderName
		}
		return entry, nil
	})
	if errors.Is(err, ui.ErrCanceled) {
		return nil
	}
	if err != nil {
		return err
	}

	if jsonOutput {
		outputJSON(picked)
		return nil
	}
	if session := sessions[picked.Group]; session != nil && noticeFormat == "" {
		printSession(session)
		return nil
	}
	return writeNotice(os.Stdout, remediationURL, sessions[picked.Group])
}
