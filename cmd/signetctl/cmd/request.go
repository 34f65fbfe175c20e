package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var requestCmd = &cobra.Command{
	Use:   "request",
	Short: "Inspect or cancel signing requests",
}

var requestGetCmd = &cobra.Command{
	Use:   "get <request-id>",
	Short: "Show the current state of a signing request",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		req, err := apiClient().GetRequest(args[0])
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Request: %s\n", req.RequestID)
		fmt.Printf("Provider: %s\n", req.ProviderName)
		switch req.Status {
		case "FAILED", "BIOMETRIC_REJECTED":
			color.Red("Status: %s", req.Status)
		case "SIGNED", "LEDGER_RECORDED", "NOTIFIED":
			color.Green("Status: %s", req.Status)
		default:
			fmt.Printf("Status: %s\n", req.Status)
		}
		if req.SignatureID != "" {
			fmt.Printf("Signature: %s\n", req.SignatureID)
		}
		if req.FailureReason != "" {
			fmt.Printf("Failure: %s\n", req.FailureReason)
		}
	},
}

var requestCancelCmd = &cobra.Command{
	Use:   "cancel <request-id>",
	Short: "Cancel a signing request that has not completed",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := apiClient().CancelRequest(args[0]); err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		color.Yellow("Request %s cancelled", args[0])
	},
}

func init() {
	rootCmd.AddCommand(requestCmd)
	requestCmd.AddCommand(requestGetCmd)
	requestCmd.AddCommand(requestCancelCmd)
}
