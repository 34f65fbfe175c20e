package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var blocksCmd = &cobra.Command{
	Use:   "blocks",
	Short: "List the most recently sealed blocks",
	Run: func(cmd *cobra.Command, args []string) {
		blocks, err := apiClient().ListBlocks()
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		for _, b := range blocks {
			fmt.Printf("#%s  %s  hash=%s prev=%s\n", b.Index, b.Timestamp, b.Hash, b.PrevHash)
		}
	},
}

func init() {
	rootCmd.AddCommand(blocksCmd)
}
