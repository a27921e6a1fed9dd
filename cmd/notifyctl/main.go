package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "notifyctl",
	Short: "Operator CLI for the notification service",
	Long:  `notifyctl sends test notifications, manages preferences and generates service keys for the notification service.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.notifyctl.yaml)")
	rootCmd.PersistentFlags().String("server", "http://localhost:8090", "notification service base URL")
	viper.BindPFlag("server", rootCmd.PersistentFlags().Lookup("server"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".notifyctl")

		configPath := filepath.Join(home, ".notifyctl.yaml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			f, err := os.Create(configPath)
			if err == nil {
				f.Close()
			}
		}
	}

	viper.SetEnvPrefix("NOTIFYCTL")
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err == nil {
		// config file is optional
	}
}

func main() {
	Execute()
}
