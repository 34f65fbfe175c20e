package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history <signature-id>",
	Short: "List every block that carries a signature",
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) != 1 {
			fmt.Println("Usage: signetctl history <signature-id>")
			os.Exit(1)
		}
		entries, err := apiClient().SignatureHistory(args[0])
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		if len(entries) == 0 {
			fmt.Println("No ledger entries for this signature.")
			return
		}
		for _, e := range entries {
			fmt.Printf("block %d  %s  signer=%s  doc=%s  provider=%s\n",
				e.BlockIndex,
				e.Timestamp.UTC().Format("2006-01-02 15:04:05"),
				e.Transaction.Signer,
				e.Transaction.DocumentHash,
				e.Transaction.Provider,
			)
		}
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
}
