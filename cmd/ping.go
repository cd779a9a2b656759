package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check that the selected Panopto server answers",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _, err := getClient()
		if err != nil {
			return err
		}

		start := time.Now()
		serverVersion, err := client.GetServerVersion(ctx)
		if err != nil {
			return exitForLookup(err)
		}
		elapsed := time.Since(start).Round(time.Millisecond)

		if jsonOutput {
			outputJSON(map[string]string{
				"server":  client.BaseURL(),
				"version": serverVersion,
				"elapsed": elapsed.String(),
			})
			return nil
		}
		if plainOutput {
			fmt.Printf("%s\t%s\t%s\n", client.BaseURL(), serverVersion, elapsed)
			return nil
		}
		fmt.Printf("%s: Panopto %s (%s)\n", client.BaseURL(), serverVersion, elapsed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pingCmd)
}
