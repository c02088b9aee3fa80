package cmd

import (
	"fmt"
	"sort"

	"github.com/fatih/color"
	"github.com/pokt-network/poktroll/pkg/polylog/polyzero"
	"github.com/spf13/cobra"

	"github.com/KingCatto/DepotDumperMorrenusEdition-sub000/cdn"
	"github.com/KingCatto/DepotDumperMorrenusEdition-sub000/config"
	"github.com/KingCatto/DepotDumperMorrenusEdition-sub000/store"
)

var endpointsContainerID uint32

var endpointsCmd = &cobra.Command{
	Use:   "endpoints",
	Short: "Query the directory service and print candidates ranked by effective weight",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		logger := polyzero.NewLogger(polyzero.WithLevel(polyzero.ParseLevel("warn")))

		directory := cdn.NewHTTPDirectoryClient(logger, cfg.Directory.URL, cfg.Directory.Timeout)
		endpoints, err := directory.ListEndpoints(cmd.Context())
		if err != nil {
			return fmt.Errorf("listing endpoints: %w", err)
		}
		if len(endpoints) == 0 {
			color.Yellow("directory returned no endpoints")
			return nil
		}

		// Rank with the persisted penalties applied, the same way the pool
		// does during population.
		penaltyStore, err := openPenaltyStore(cfg)
		if err != nil {
			return err
		}
		tracker := cdn.NewPenaltyTracker(logger, penaltyStore)

		type rankedEndpoint struct {
			endpoint *cdn.Endpoint
			weight   int64
			eligible bool
		}
		ranked := make([]rankedEndpoint, 0, len(endpoints))
		for _, endpoint := range endpoints {
			eligible := endpoint.ClassificationAllowed()
			if endpointsContainerID != 0 {
				eligible = eligible && endpoint.AllowsContainer(cdn.ContainerID(endpointsContainerID))
			}
			ranked = append(ranked, rankedEndpoint{
				endpoint: endpoint,
				weight:   tracker.EffectiveWeight(cmd.Context(), endpoint.Host, endpoint.DeclaredLoad),
				eligible: eligible,
			})
		}
		sort.SliceStable(ranked, func(i, j int) bool {
			return ranked[i].weight < ranked[j].weight
		})

		for _, re := range ranked {
			line := fmt.Sprintf("%s\tclass=%s\tload=%d\tcapacity=%d\tweight=%d",
				re.endpoint.Host, re.endpoint.Classification, re.endpoint.DeclaredLoad,
				re.endpoint.CapacityWeight, re.weight)
			if re.endpoint.UseAsProxy {
				line += "\t[proxy]"
			}
			if re.eligible {
				fmt.Println(line)
			} else {
				color.Red("%s\t[excluded]", line)
			}
		}
		return nil
	},
}

func init() {
	endpointsCmd.Flags().Uint32Var(&endpointsContainerID, "container", 0, "restrict eligibility to this container ID")
	rootCmd.AddCommand(endpointsCmd)
}

// openPenaltyStore returns the configured penalty store, falling back to an
// empty in-memory store when persistence is not configured.
func openPenaltyStore(cfg config.Config) (cdn.PenaltyStore, error) {
	if cfg.PenaltyStore.FilePath != "" {
		fileStore, err := store.NewFile(cfg.PenaltyStore.FilePath)
		if err != nil {
			return nil, fmt.Errorf("opening file penalty store: %w", err)
		}
		return fileStore, nil
	}
	return store.NewMemory(), nil
}
