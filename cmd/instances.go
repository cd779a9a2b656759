package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/julianfbeck/panopto-relink-cli/internal/config"
	"github.com/julianfbeck/panopto-relink-cli/internal/ui"
)

var (
	addServer   string
	addKeyStdin bool
	importMerge bool
)

var instancesCmd = &cobra.Command{
	Use:   "instances",
	Short: "Manage configured Panopto instances",
}

type instanceView struct {
	Slot       int    `json:"slot"`
	ServerName string `json:"server_name"`
	HasKey     bool   `json:"has_key"`
	Complete   bool   `json:"complete"`
	Overflow   bool   `json:"overflow,omitempty"`
	Selected   bool   `json:"selected"`
}

var instancesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List instances in selection order",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}

		selected, selErr := config.Select(cfg.Instances)
		views := make([]instanceView, 0, len(cfg.Instances))
		for _, inst := range cfg.Instances {
			views = append(views, instanceView{
				Slot:       inst.Slot,
				ServerName: inst.ServerName,
				HasKey:     inst.ApplicationKey != "",
				Complete:   inst.Complete(),
				Overflow:   inst.Overflow,
				Selected:   selErr == nil && inst.Slot == selected.Slot,
			})
		}

		if jsonOutput {
			outputJSON(views)
			return nil
		}
		if len(views) == 0 {
			printInfo("No instances configured\n")
			return nil
		}
		for _, v := range views {
			if plainOutput {
				fmt.Printf("%d\t%s\t%t\t%t\n", v.Slot, v.ServerName, v.Complete, v.Selected)
				continue
			}
			fmt.Println(formatInstance(v))
		}
		return nil
	},
}

func formatInstance(v instanceView) string {
	mark := " "
	if v.Selected {
		mark = "*"
	}
	line := fmt.Sprintf("%s %2d) %s", mark, v.Slot, v.ServerName)
	if !v.HasKey {
		line += " (no key)"
	}
	if v.Overflow {
		line += " (past server count)"
	}
	return line
}

var instancesAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a Panopto instance",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, store, err := loadFileConfig()
		if err != nil {
			return err
		}

		server := addServer
		if server == "" && !noInput {
			server = promptLine("Server name: ", "")
		}
		server = strings.TrimSpace(server)
		if server == "" {
			return exitError(exitUsage, fmt.Errorf("server name is required"))
		}

		key, err := readApplicationKey(addKeyStdin)
		if err != nil {
			return err
		}
		if key == "" {
			return exitError(exitUsage, fmt.Errorf("application key is required"))
		}

		cfg.AddInstance(config.Instance{ServerName: server, ApplicationKey: key})
		if err := config.Save(store, cfg); err != nil {
			return err
		}
		printInfo("Added %s in slot %d\n", server, len(cfg.Instances))
		return nil
	},
}

var instancesRemoveCmd = &cobra.Command{
	Use:   "remove [slot]",
	Short: "Remove an instance by slot",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, store, err := loadFileConfig()
		if err != nil {
			return err
		}
		if len(cfg.Instances) == 0 {
			return exitError(exitUsage, fmt.Errorf("no instances configured"))
		}

		var slots []int
		if len(args) == 1 {
			slot, err := strconv.Atoi(args[0])
			if err != nil {
				return exitError(exitUsage, fmt.Errorf("invalid slot %q", args[0]))
			}
			slots = []int{slot}
		} else {
			if noInput {
				return exitError(exitUsage, fmt.Errorf("slot required with --no-input"))
			}
			labels := make([]string, len(cfg.Instances))
			for i, inst := range cfg.Instances {
				labels[i] = inst.ServerName
			}
			indices, err := ui.PromptSelectIndices(os.Stdin, os.Stdout, "Remove instance(s):", labels, true)
			if errors.Is(err, ui.ErrSelectionCanceled) {
				return nil
			}
			if err != nil {
				return exitError(exitUsage, err)
			}
			for _, idx := range indices {
				slots = append(slots, idx+1)
			}
		}

		removed, err := removeSlots(cfg, slots)
		if err != nil {
			return exitError(exitUsage, err)
		}
		if err := config.Save(store, cfg); err != nil {
			return err
		}
		for _, name := range removed {
			printInfo("Removed %s\n", name)
		}
		return nil
	},
}

// removeSlots removes the given slots, highest first so earlier numbers stay
// valid while removing.
func removeSlots(cfg *config.Config, slots []int) ([]string, error) {
	ordered := append([]int(nil), slots...)
	sort.Sort(sort.Reverse(sort.IntSlice(ordered)))

	var removed []string
	for _, slot := range ordered {
		if slot < 1 || slot > len(cfg.Instances) {
			return nil, fmt.Errorf("no instance in slot %d", slot)
		}
		name := cfg.Instances[slot-1].ServerName
		if err := cfg.RemoveInstance(slot); err != nil {
			return nil, err
		}
		removed = append(removed, name)
	}
	return removed, nil
}

var instancesImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Import instances from a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, store, err := loadFileConfig()
		if err != nil {
			return err
		}
		imported, err := config.ImportYAML(args[0])
		if err != nil {
			return exitError(exitUsage, err)
		}
		if len(imported) == 0 {
			printInfo("No instances in %s\n", args[0])
			return nil
		}

		if !importMerge {
			cfg.Instances = nil
		}
		for _, inst := range imported {
			cfg.AddInstance(inst)
		}
		if err := config.Save(store, cfg); err != nil {
			return err
		}
		printInfo("Imported %d instance(s)\n", len(imported))
		return nil
	},
}

func init() {
	instancesAddCmd.Flags().StringVar(&addServer, "server-name", "", "Panopto server host")
	instancesAddCmd.Flags().BoolVar(&addKeyStdin, "key-stdin", false, "Read the application key from stdin")
	instancesImportCmd.Flags().BoolVar(&importMerge, "merge", false, "Append to existing instances instead of replacing them")

	instancesCmd.AddCommand(instancesListCmd)
	instancesCmd.AddCommand(instancesAddCmd)
	instancesCmd.AddCommand(instancesRemoveCmd)
	instancesCmd.AddCommand(instancesImportCmd)
	rootCmd.AddCommand(instancesCmd)
}

func readApplicationKey(fromStdin bool) (string, error) {
	if fromStdin {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(data)), nil
	}
	if noInput {
		return "", exitError(exitUsage, fmt.Errorf("application key required; use --key-stdin"))
	}
	fmt.Print("Application key: ")
	key, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(key)), nil
}

func promptLine(label, fallback string) string {
	reader := bufio.NewReader(os.Stdin)
	fmt.Print(label)
	line, _ := reader.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		return fallback
	}
	return line
}
