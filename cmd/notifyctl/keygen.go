package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teamdesk/teamdesk/pkg/apikey"
)

var keygenSecret string

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a service API key for the internal dispatch endpoint",
	Run: func(cmd *cobra.Command, args []string) {
		if keygenSecret == "" {
			fmt.Println("--secret is required (must match the service's service_key_secret)")
			return
		}
		key, hash, err := apikey.GenerateKey("svc_notify", keygenSecret)
		if err != nil {
			fmt.Printf("Error generating key: %v\n", err)
			return
		}
		fmt.Println("Key (give to the calling service):", key)
		fmt.Println("Hash (add to service_key_hashes): ", hash)
	},
}

func init() {
	keygenCmd.Flags().StringVar(&keygenSecret, "secret", "", "HMAC secret shared with the notification service")
	rootCmd.AddCommand(keygenCmd)
}
