package cmd

import (
	"context"
	"fmt"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/KingCatto/DepotDumperMorrenusEdition-sub000/config"
	"github.com/KingCatto/DepotDumperMorrenusEdition-sub000/store"
	"github.com/KingCatto/DepotDumperMorrenusEdition-sub000/store/postgres"
)

var penaltiesCmd = &cobra.Command{
	Use:   "penalties",
	Short: "Dump the persisted per-host penalty scores",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		penalties, err := loadPenalties(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		if len(penalties) == 0 {
			color.Green("no penalties on record")
			return nil
		}

		type hostPenalty struct {
			host    string
			penalty int64
		}
		sorted := make([]hostPenalty, 0, len(penalties))
		for host, penalty := range penalties {
			sorted = append(sorted, hostPenalty{host, penalty})
		}
		sort.Slice(sorted, func(i, j int) bool {
			return sorted[i].penalty > sorted[j].penalty
		})

		for _, hp := range sorted {
			fmt.Printf("%s\t%d\n", hp.host, hp.penalty)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(penaltiesCmd)
}

// loadPenalties reads every persisted penalty from the configured backend.
func loadPenalties(ctx context.Context, cfg config.Config) (map[string]int64, error) {
	switch {
	case cfg.PenaltyStore.PostgresConnectionString != "":
		pgStore, cleanup, err := postgres.NewPenaltyStore(cfg.PenaltyStore.PostgresConnectionString)
		if err != nil {
			return nil, fmt.Errorf("opening postgres penalty store: %w", err)
		}
		defer cleanup()
		return pgStore.All(ctx)

	case cfg.PenaltyStore.FilePath != "":
		fileStore, err := store.NewFile(cfg.PenaltyStore.FilePath)
		if err != nil {
			return nil, fmt.Errorf("opening file penalty store: %w", err)
		}
		return fileStore.All(), nil

	default:
		return nil, fmt.Errorf("no persistent penalty store configured")
	}
}
