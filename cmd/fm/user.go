package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aadityasamani/FlightMode/internal/schema"
	"github.com/aadityasamani/FlightMode/internal/store"
)

var userCmd = &cobra.Command{
	Use:     "user",
	GroupID: "advanced",
	Short:   "Manage the local user profile",
}

var userSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Save or update the user profile",
	Long: `Upsert the user profile in the local store.

Example:
  fm user set --id alice --name "Alice" --email alice@example.com`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		st := openStore(cfg)
		defer st.Close()

		id, _ := cmd.Flags().GetString("id")
		name, _ := cmd.Flags().GetString("name")
		email, _ := cmd.Flags().GetString("email")
		photo, _ := cmd.Flags().GetString("photo")

		profile := schema.UserProfile{
			ID:          requireUserID(cfg, id),
			DisplayName: name,
			Email:       email,
			PhotoURL:    photo,
		}

		if err := st.SaveUser(cmd.Context(), profile); err != nil {
			fmt.Fprintf(os.Stderr, "Error saving user: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("User %s saved\n", profile.ID)
	},
}

var userShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the user profile",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		st := openStore(cfg)
		defer st.Close()

		id, _ := cmd.Flags().GetString("id")

		profile, err := st.GetUser(cmd.Context(), requireUserID(cfg, id))
		if err != nil {
			if err == store.ErrNotFound {
				fmt.Println("No profile saved")
				return
			}
			fmt.Fprintf(os.Stderr, "Error reading user: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("ID: %s\n", profile.ID)
		fmt.Printf("Name: %s\n", dashIfEmpty(profile.DisplayName))
		fmt.Printf("Email: %s\n", dashIfEmpty(profile.Email))
		fmt.Printf("Updated: %s\n", profile.LastUpdated)
	},
}

func init() {
	userSetCmd.Flags().String("id", "", "User id (overrides config)")
	userSetCmd.Flags().String("name", "", "Display name")
	userSetCmd.Flags().String("email", "", "Email address")
	userSetCmd.Flags().String("photo", "", "Photo URL")

	userShowCmd.Flags().String("id", "", "User id (overrides config)")

	userCmd.AddCommand(userSetCmd)
	userCmd.AddCommand(userShowCmd)
	rootCmd.AddCommand(userCmd)
}
