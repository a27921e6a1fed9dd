package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/teamdesk/teamdesk/internal/notify"
)

var (
	sendUser   string
	sendTenant string
	sendTitle  string
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send a test notification to a user",
	Run: func(cmd *cobra.Command, args []string) {
		if sendUser == "" {
			fmt.Println("--user is required")
			return
		}

		var tenant *string
		if sendTenant != "" {
			tenant = &sendTenant
		}
		actor := notify.Actor{ID: "notifyctl", Name: "notifyctl"}
		ev, err := notify.NewEvent(notify.EventTaskAssigned, tenant, actor, notify.TaskEventData{
			TaskID:     "test-task",
			Title:      sendTitle,
			Recipients: []string{sendUser},
		})
		if err != nil {
			fmt.Printf("Error building event: %v\n", err)
			return
		}

		body, _ := json.Marshal(ev)
		serverURL := viper.GetString("server")
		req, _ := http.NewRequest("POST", serverURL+"/internal/v1/dispatch", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-API-Key", viper.GetString("api_key"))

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			fmt.Printf("Error connecting to notification service: %v\n", err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusAccepted {
			fmt.Println("Dispatch rejected. Status:", resp.Status)
			return
		}
		fmt.Printf("Dispatched test notification %s to %s\n", ev.ID, sendUser)
	},
}

func init() {
	sendCmd.Flags().StringVar(&sendUser, "user", "", "recipient user id")
	sendCmd.Flags().StringVar(&sendTenant, "tenant", "", "tenant scope (omit for system-wide)")
	sendCmd.Flags().StringVar(&sendTitle, "title", "Test notification", "notification title")
	rootCmd.AddCommand(sendCmd)
}
