package cli

import (
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"healthsync/internal/domain"
)

var (
	statsKind string
	statsJSON bool
	statsUnit string
)

func init() {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show streaks, trend and averages",
		Run:   runStats,
	}
	cmd.Flags().StringVarP(&statsKind, "kind", "k", "", "Tracker (default: all)")
	cmd.Flags().BoolVar(&statsJSON, "json", false, "JSON output")
	cmd.Flags().StringVarP(&statsUnit, "unit", "u", "", "Display unit (kg/lb for weight, ml/oz/l for hydration)")
	RootCmd.AddCommand(cmd)
}

func runStats(cmd *cobra.Command, args []string) {
	a, err := buildApp()
	if err != nil {
		exitErr("startup", err)
	}
	defer a.close()

	out := make(map[domain.Kind]domain.StreakSummary)
	for _, t := range selectTrackers(a, statsKind) {
		sum := t.Stats.Summary()
		convertSummary(&sum, t.Profile.Kind, t.Profile.Unit)
		out[t.Profile.Kind] = sum
	}

	if statsJSON {
		blob, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			exitErr("stats", err)
		}
		fmt.Println(string(blob))
		return
	}

	for _, k := range domain.Kinds() {
		sum, ok := out[k]
		if !ok {
			continue
		}
		fmt.Printf("%s: streak %d (longest %d), %d goal-met days",
			k, sum.Current, sum.Longest, sum.GoalMetDays)
		if sum.Average != nil {
			fmt.Printf(", avg %.2f", *sum.Average)
		}
		if sum.Trend != nil {
			fmt.Printf(", trend %+.2f", *sum.Trend)
		}
		fmt.Println()
	}
}

// convertSummary applies display-unit conversion to the derived values.
// Stored values stay canonical.
func convertSummary(sum *domain.StreakSummary, kind domain.Kind, canonical string) {
	if statsUnit == "" || statsUnit == canonical {
		return
	}
	conv := func(v float64) float64 { return v }
	switch kind {
	case domain.KindWeight:
		conv = func(v float64) float64 { return domain.ConvertWeight(v, canonical, statsUnit) }
	case domain.KindHydration:
		conv = func(v float64) float64 { return domain.ConvertVolume(v, canonical, statsUnit) }
	}
	if sum.Average != nil {
		v := conv(*sum.Average)
		sum.Average = &v
	}
	if sum.Trend != nil {
		v := conv(*sum.Trend)
		sum.Trend = &v
	}
}
