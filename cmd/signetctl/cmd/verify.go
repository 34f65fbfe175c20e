package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <signature-id>",
	Short: "Check whether a signature is recorded on the ledger",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		result, err := apiClient().VerifySignature(args[0])
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		if result.Verified {
			color.Green("VERIFIED  %s", result.SignatureID)
			return
		}
		color.Red("NOT FOUND  %s", result.SignatureID)
		os.Exit(1)
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}
