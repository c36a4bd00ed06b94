package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"healthsync/internal/domain"
)

var (
	logKind    string
	logValue   float64
	logUnit    string
	logSubtype string
	logAt      string
	logBed     string
	logWake    string
)

func init() {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Record a manual entry",
		Long: "Records a manually entered measurement. Values are converted to the\n" +
			"canonical unit before storage (kg, ml, hours). With sync enabled the\n" +
			"entry is mirrored to the external store under a suppression window.",
		Run: runLog,
	}
	cmd.Flags().StringVarP(&logKind, "kind", "k", "", "Tracker: weight, hydration or sleep")
	cmd.Flags().Float64VarP(&logValue, "value", "v", 0, "Measurement value")
	cmd.Flags().StringVarP(&logUnit, "unit", "u", "", "Input unit (kg/lb, ml/oz/l)")
	cmd.Flags().StringVar(&logSubtype, "subtype", "", "Drink subtype, e.g. water")
	cmd.Flags().StringVar(&logAt, "at", "", "Event time (RFC3339), defaults to now")
	cmd.Flags().StringVar(&logBed, "bed", "", "Sleep: bed time (RFC3339)")
	cmd.Flags().StringVar(&logWake, "wake", "", "Sleep: wake time (RFC3339)")
	_ = cmd.MarkFlagRequired("kind")
	RootCmd.AddCommand(cmd)
}

func runLog(cmd *cobra.Command, args []string) {
	a, err := buildApp()
	if err != nil {
		exitErr("startup", err)
	}
	defer a.close()

	t, err := trackerByName(a, logKind)
	if err != nil {
		exitErr("log", err)
	}

	entry, err := buildEntry(t.Profile.Kind)
	if err != nil {
		exitErr("log", err)
	}

	if t.Sync.Enabled() {
		if err := t.Sync.Resume(cmd.Context()); err != nil {
			fmt.Printf("note: external store unavailable, entry stays local: %v\n", err)
		}
	}
	if err := t.Sync.RecordManual(cmd.Context(), entry); err != nil {
		exitErr("log", err)
	}
	fmt.Printf("logged %s entry %.2f %s\n", t.Profile.Kind, entry.Value, t.Profile.Unit)
}

func buildEntry(kind domain.Kind) (domain.Entry, error) {
	ts := time.Now()
	if logAt != "" {
		parsed, err := time.Parse(time.RFC3339, logAt)
		if err != nil {
			return domain.Entry{}, fmt.Errorf("parse --at: %w", err)
		}
		ts = parsed
	}

	switch kind {
	case domain.KindWeight:
		if logValue <= 0 {
			return domain.Entry{}, fmt.Errorf("value must be > 0")
		}
		unit := logUnit
		if unit == "" {
			unit = "kg"
		}
		return domain.Entry{
			Kind:      kind,
			Value:     domain.ConvertWeight(logValue, unit, "kg"),
			Timestamp: ts,
		}, nil

	case domain.KindHydration:
		if logValue <= 0 {
			return domain.Entry{}, fmt.Errorf("value must be > 0")
		}
		unit := logUnit
		if unit == "" {
			unit = "ml"
		}
		subtype := logSubtype
		if subtype == "" {
			subtype = "water"
		}
		return domain.Entry{
			Kind:      kind,
			Subtype:   subtype,
			Value:     domain.ConvertVolume(logValue, unit, "ml"),
			Timestamp: ts,
		}, nil

	case domain.KindSleep:
		if logBed == "" || logWake == "" {
			return domain.Entry{}, fmt.Errorf("sleep entries need --bed and --wake")
		}
		bed, err := time.Parse(time.RFC3339, logBed)
		if err != nil {
			return domain.Entry{}, fmt.Errorf("parse --bed: %w", err)
		}
		wake, err := time.Parse(time.RFC3339, logWake)
		if err != nil {
			return domain.Entry{}, fmt.Errorf("parse --wake: %w", err)
		}
		span := domain.SleepSpan{Bed: bed, Wake: wake}
		if span.Hours() == 0 {
			return domain.Entry{}, fmt.Errorf("wake must be after bed")
		}
		return domain.Entry{
			Kind:      kind,
			Value:     span.Hours(),
			Sleep:     &span,
			Timestamp: wake,
		}, nil
	}
	return domain.Entry{}, fmt.Errorf("unknown kind %q", kind)
}
