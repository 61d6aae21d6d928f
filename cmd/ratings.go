package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pinleague/pipeline/internal/ratings"
)

var (
	ratingsSeason int
	ratingsAPIKey string
)

// ratingsCmd refreshes player rating snapshots from the external ratings
// service. Enrichment only: the pipeline runs without it, and a player the
// service does not know keeps the snapshot it loaded with.
var ratingsCmd = &cobra.Command{
	Use:   "ratings",
	Short: "Refresh player rating snapshots from the ratings service",
	Args:  cobra.NoArgs,
	RunE:  runRatings,
}

func init() {
	ratingsCmd.Flags().IntVar(&ratingsSeason, "season", 0, "season whose players to refresh (required)")
	ratingsCmd.Flags().StringVar(&ratingsAPIKey, "api-key", "", "ratings API key (or config ratings.api_key)")
	ratingsCmd.MarkFlagRequired("season")
}

func runRatings(cmd *cobra.Command, args []string) error {
	apiKey := ratingsAPIKey
	if apiKey == "" {
		apiKey = cfg.Ratings.APIKey
	}
	if apiKey == "" {
		return fmt.Errorf("ratings API key required (--api-key or config ratings.api_key)")
	}

	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	players, err := db.SeasonPlayers(ratingsSeason)
	if err != nil {
		return fmt.Errorf("read season players: %w", err)
	}
	if len(players) == 0 {
		fmt.Fprintf(os.Stdout, "No players loaded for season %d.\n", ratingsSeason)
		return nil
	}

	client := ratings.NewClient(cfg.Ratings.BaseURL, apiKey)
	updated, missed := 0, 0
	for _, p := range players {
		r, err := client.GetPlayer(p.Key)
		if err != nil {
			log.WithField("player", p.Key).WithError(err).Debug("no rating from service")
			missed++
			continue
		}
		if err := db.UpdatePlayerRating(p.Key, r.Rating); err != nil {
			return fmt.Errorf("update rating for %s: %w", p.Key, err)
		}
		updated++
	}
	fmt.Fprintf(os.Stdout, "Updated %d of %d player ratings (%d not found).\n", updated, len(players), missed)
	return nil
}
