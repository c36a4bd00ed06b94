package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"healthsync/internal/app"
	"healthsync/internal/domain"
)

var (
	syncKind string
	syncFull bool
)

func init() {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run an on-demand sync against the external store",
		Long: "Runs an incremental sync for one tracker (or all). With --full,\n" +
			"external deletions are propagated: locally stored externally-synced\n" +
			"entries absent from the remote snapshot are removed. Manual entries\n" +
			"are never touched.",
		Run: runSync,
	}
	cmd.PersistentFlags().StringVarP(&syncKind, "kind", "k", "", "Tracker (default: all)")
	cmd.Flags().BoolVar(&syncFull, "full", false, "Reconcile with deletion detection")
	cmd.AddCommand(
		&cobra.Command{Use: "on", Short: "Enable sync for a tracker", Run: runSyncOn},
		&cobra.Command{Use: "off", Short: "Disable sync for a tracker", Run: runSyncOff},
	)
	RootCmd.AddCommand(cmd)
}

func runSync(cmd *cobra.Command, args []string) {
	a, err := buildApp()
	if err != nil {
		exitErr("startup", err)
	}
	defer a.close()

	for _, t := range selectTrackers(a, syncKind) {
		if !t.Sync.Enabled() {
			fmt.Printf("%s: sync disabled (run 'healthsync sync on --kind %s')\n", t.Profile.Kind, t.Profile.Kind)
			continue
		}
		if err := t.Sync.Resume(cmd.Context()); err != nil {
			fmt.Printf("%s: %v\n", t.Profile.Kind, err)
			continue
		}

		var res app.ReconcileResult
		if syncFull {
			res, err = t.Sync.FullReconcile(cmd.Context())
		} else {
			res, err = t.Sync.SyncNow(cmd.Context())
		}
		if err != nil {
			fmt.Printf("%s: sync failed: %v\n", t.Profile.Kind, err)
			continue
		}
		fmt.Printf("%s: +%d -%d\n", t.Profile.Kind, res.Added, res.Removed)
	}
}

func runSyncOn(cmd *cobra.Command, args []string) {
	a, err := buildApp()
	if err != nil {
		exitErr("startup", err)
	}
	defer a.close()

	for _, t := range selectTrackers(a, syncKind) {
		if err := t.Sync.Enable(cmd.Context()); err != nil {
			fmt.Printf("%s: could not enable sync: %v\n", t.Profile.Kind, err)
			continue
		}
		fmt.Printf("%s: sync enabled\n", t.Profile.Kind)
	}
}

func runSyncOff(cmd *cobra.Command, args []string) {
	a, err := buildApp()
	if err != nil {
		exitErr("startup", err)
	}
	defer a.close()

	for _, t := range selectTrackers(a, syncKind) {
		t.Sync.Disable()
		fmt.Printf("%s: sync disabled\n", t.Profile.Kind)
	}
}

func selectTrackers(a *appContext, kind string) []*app.Tracker {
	if kind != "" {
		t, err := trackerByName(a, kind)
		if err != nil {
			exitErr("sync", err)
		}
		return []*app.Tracker{t}
	}
	out := make([]*app.Tracker, 0, len(a.trackers))
	for _, k := range domain.Kinds() {
		if t, ok := a.trackers[k]; ok {
			out = append(out, t)
		}
	}
	return out
}
