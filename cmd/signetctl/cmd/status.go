package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Query node status and health",
	Example: `  signetctl status
  signetctl status --output json`,
	Run: func(cmd *cobra.Command, args []string) {
		output, _ := cmd.Flags().GetString("output")
		status, err := apiClient().GetStatus()
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		if output == "json" {
			fmt.Println(status.ToJSON())
			return
		}
		switch status.Status {
		case "healthy":
			color.Green("Status: %s", status.Status)
		default:
			color.Yellow("Status: %s", status.Status)
		}
		fmt.Printf("Version: %s (%s)\n", status.Version, status.APIVersion)
		fmt.Printf("Block height: %d\n", status.BlockHeight)
		fmt.Printf("Peers: %d\n", status.PeerCount)
		fmt.Printf("Uptime: %ds\n", status.Uptime)
		if status.LastBlock != "" {
			fmt.Printf("Last block: %s\n", status.LastBlock)
		}
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringP("output", "o", "plain", "Output format: plain|json")
}
