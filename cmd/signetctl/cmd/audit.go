package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Dump the node's audit trail",
	Run: func(cmd *cobra.Command, args []string) {
		entries, err := apiClient().AuditTrail()
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		if len(entries) == 0 {
			fmt.Println("Audit trail is empty.")
			return
		}
		for _, e := range entries {
			line := fmt.Sprintf("%s  %-16s actor=%s doc=%s",
				e.Timestamp.UTC().Format("2006-01-02 15:04:05"),
				e.Action, e.Actor, e.DocumentHash)
			if e.Error != "" {
				color.Red("%s error=%s", line, e.Error)
				continue
			}
			fmt.Println(line)
		}
	},
}

func init() {
	rootCmd.AddCommand(auditCmd)
}
