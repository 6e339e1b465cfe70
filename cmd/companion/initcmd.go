package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"companion/internal/config"
	"companion/internal/profile"
	"companion/internal/store"
)

// initCmd seeds the demo profiles so a two-peer setup works out of the box:
// Alice and Bob trust each other and share availability and cuisine
// preferences, with complementary Saturday busy slots.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Seed this peer's profile into its database",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		st, err := store.Open(cfg.Database, logger)
		if err != nil {
			return err
		}
		defer st.Close()

		prof, ok := demoProfiles()[cfg.Peer.ID]
		if !ok {
			prof = &profile.Profile{
				PeerID:          cfg.Peer.ID,
				DisplayName:     cfg.Peer.Name,
				Preferences:     map[string][]string{},
				TrustedContacts: []string{cfg.Remote.ID},
				SharingRules: map[string][]string{
					cfg.Remote.ID: {profile.CategoryAvailability, profile.CategoryCuisine},
				},
			}
		}

		if err := st.SaveProfile(cfg.Peer.ID, prof); err != nil {
			return err
		}
		fmt.Printf("seeded profile for %s (%s)\n", prof.PeerID, prof.DisplayName)
		return nil
	},
}

func demoProfiles() map[string]*profile.Profile {
	return map[string]*profile.Profile{
		"alice": {
			PeerID:      "alice",
			DisplayName: "Alice",
			Preferences: map[string][]string{
				"cuisine":              {"Italian", "Thai", "Sushi"},
				"dining_times":         {"19:00", "19:30", "20:00"},
				"weekend_availability": {"high"},
				"dietary":              {"vegetarian"},
			},
			BusySlots:       []string{"2024-12-07T14:00:00/2024-12-07T16:00:00"},
			TrustedContacts: []string{"bob"},
			SharingRules: map[string][]string{
				"bob": {profile.CategoryAvailability, profile.CategoryCuisine},
			},
		},
		"bob": {
			PeerID:      "bob",
			DisplayName: "Bob",
			Preferences: map[string][]string{
				"cuisine":              {"Italian", "Mexican"},
				"dining_times":         {"18:30", "19:00"},
				"weekend_availability": {"high"},
			},
			BusySlots:       []string{"2024-12-07T10:00:00/2024-12-07T12:00:00"},
			TrustedContacts: []string{"alice"},
			SharingRules: map[string][]string{
				"alice": {profile.CategoryAvailability, profile.CategoryCuisine},
			},
		},
	}
}
