package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"signet/cmd/signetctl/client"
)

var (
	nodeURL   string
	authToken string
)

var rootCmd = &cobra.Command{
	Use:   "signetctl",
	Short: "Signet signing node CLI",
	Long:  "A command-line tool for managing and interacting with signet signing nodes.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	defaultNode := os.Getenv("SIGNET_NODE")
	if defaultNode == "" {
		defaultNode = "http://localhost:8080"
	}
	rootCmd.PersistentFlags().StringVar(&nodeURL, "node", defaultNode, "Base URL of the signet node")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", os.Getenv("SIGNET_TOKEN"), "Bearer token for protected endpoints")
}

func apiClient() *client.Client {
	return client.New(nodeURL, authToken)
}
