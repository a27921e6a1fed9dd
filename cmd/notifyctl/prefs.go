package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Inspect or change notification preferences",
}

var prefsGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Show the current user's notification preferences",
	Run: func(cmd *cobra.Command, args []string) {
		req, _ := http.NewRequest("GET", viper.GetString("server")+"/api/v1/preferences", nil)
		req.Header.Set("Authorization", "Bearer "+viper.GetString("token"))

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			fmt.Printf("Error connecting to notification service: %v\n", err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			fmt.Println("Request failed. Status:", resp.Status)
			return
		}

		var prefs map[string]any
		json.NewDecoder(resp.Body).Decode(&prefs)
		out, _ := json.MarshalIndent(prefs, "", "  ")
		fmt.Println(string(out))
	},
}

var prefsSetCmd = &cobra.Command{
	Use:   "set <field>=<true|false> ...",
	Short: "Update notification preference toggles",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		server := viper.GetString("server")
		token := viper.GetString("token")

		// Read current prefs so unset fields keep their values.
		req, _ := http.NewRequest("GET", server+"/api/v1/preferences", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			fmt.Printf("Error connecting to notification service: %v\n", err)
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			fmt.Println("Failed to read current preferences. Status:", resp.Status)
			return
		}
		var prefs map[string]any
		json.NewDecoder(resp.Body).Decode(&prefs)

		for _, arg := range args {
			field, raw, ok := strings.Cut(arg, "=")
			if !ok {
				fmt.Printf("Skipping %q: expected <field>=<true|false>\n", arg)
				continue
			}
			val, err := strconv.ParseBool(raw)
			if err != nil {
				fmt.Printf("Skipping %q: %v\n", arg, err)
				continue
			}
			prefs[field] = val
		}

		body, _ := json.Marshal(prefs)
		putReq, _ := http.NewRequest("PUT", server+"/api/v1/preferences", bytes.NewBuffer(body))
		putReq.Header.Set("Authorization", "Bearer "+token)
		putReq.Header.Set("Content-Type", "application/json")

		putResp, err := http.DefaultClient.Do(putReq)
		if err != nil {
			fmt.Printf("Error connecting to notification service: %v\n", err)
			return
		}
		defer putResp.Body.Close()

		if putResp.StatusCode != http.StatusOK {
			fmt.Println("Update failed. Status:", putResp.Status)
			return
		}
		fmt.Println("Preferences updated.")
	},
}

func init() {
	prefsCmd.PersistentFlags().String("token", "", "bearer token for the user API")
	viper.BindPFlag("token", prefsCmd.PersistentFlags().Lookup("token"))
	prefsCmd.AddCommand(prefsGetCmd)
	prefsCmd.AddCommand(prefsSetCmd)
	rootCmd.AddCommand(prefsCmd)
}
