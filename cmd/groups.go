package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/julianfbeck/panopto-relink-cli/internal/config"
	"github.com/julianfbeck/panopto-relink-cli/internal/panopto"
)

var groupsCmd = &cobra.Command{
	Use:   "groups <name>",
	Short: "List Panopto groups with the given name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, cred, err := getClient()
		if err != nil {
			return err
		}

		groups, err := client.ListGroupsByName(ctx, cred, args[0])
		if err != nil {
			return exitForLookup(err)
		}

		if jsonOutput {
			outputJSON(groups)
			return nil
		}
		if len(groups) == 0 {
			printInfo("No groups named %q\n", args[0])
			return nil
		}
		for _, g := range groups {
			if plainOutput {
				fmt.Printf("%s\t%s\t%s\t%s\n", g.ID, g.Name, g.Type, g.MembershipProviderName)
				continue
			}
			fmt.Printf("%s  %s [%s]\n", g.ID, g.Name, g.Type)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(groupsCmd)
}

// getClient returns a client and credential for the selected instance.
func getClient() (*panopto.Client, panopto.Credential, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, panopto.Credential{}, err
	}
	if err := cfg.ValidateIdentity(); err != nil {
		return nil, panopto.Credential{}, exitError(exitConfigMissing, err)
	}
	inst, err := config.Select(cfg.Instances)
	if err != nil {
		return nil, panopto.Credential{}, exitError(exitConfigMissing, err)
	}
	cred := panopto.NewCredential(cfg.UserKey(), config.ServerHost(inst.ServerName), inst.ApplicationKey, nil)
	return newClient(inst), cred, nil
}
