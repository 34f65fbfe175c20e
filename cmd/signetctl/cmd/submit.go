package cmd

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"signet/cmd/signetctl/client"
)

var submitCmd = &cobra.Command{
	Use:   "submit <document-file>",
	Short: "Submit a document for signing",
	Example: `  signetctl submit offer.pdf --recipient jane@example.com:"Jane Doe"
  signetctl submit nda.pdf -r a@x.com -r b@x.com`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		recipients := parseRecipients(cmd.Flags())
		if len(recipients) == 0 {
			fmt.Println("At least one --recipient is required.")
			os.Exit(1)
		}
		path := args[0]
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		contentType, _ := cmd.Flags().GetString("content-type")
		result, err := apiClient().SubmitRequest(
			filepath.Base(path),
			contentType,
			base64.StdEncoding.EncodeToString(data),
			recipients,
		)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		color.Green("Request accepted")
		fmt.Printf("Request ID: %s\nStatus: %s\n", result.RequestID, result.Status)
	},
}

// parseRecipients turns repeated --recipient email[:display name] flags
// into API recipients.
func parseRecipients(flags *pflag.FlagSet) []client.SubmitRecipient {
	raw, _ := flags.GetStringArray("recipient")
	recipients := make([]client.SubmitRecipient, 0, len(raw))
	for _, r := range raw {
		email, name, found := strings.Cut(r, ":")
		if !found {
			name = email
		}
		recipients = append(recipients, client.SubmitRecipient{Email: email, DisplayName: name})
	}
	return recipients
}

func init() {
	rootCmd.AddCommand(submitCmd)
	submitCmd.Flags().StringArrayP("recipient", "r", nil, "Recipient as email or email:display name (repeatable)")
	submitCmd.Flags().String("content-type", "application/pdf", "MIME type of the document")
}
