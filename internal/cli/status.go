package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"healthsync/internal/domain"
)

func init() {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show per-tracker sync status",
		Run:   runStatus,
	}
	RootCmd.AddCommand(cmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	a, err := buildApp()
	if err != nil {
		exitErr("startup", err)
	}
	defer a.close()

	for _, k := range domain.Kinds() {
		t, ok := a.trackers[k]
		if !ok {
			continue
		}
		st := t.Sync.Status()
		switch {
		case !t.Sync.Enabled():
			fmt.Printf("%s: sync off, %d entries\n", k, t.Store.Len())
		case st.LastAttempt.IsZero():
			fmt.Printf("%s: sync on, never synced, %d entries\n", k, t.Store.Len())
		case st.LastError != "":
			fmt.Printf("%s: last sync failed (%s) at %s, %d entries\n",
				k, st.LastError, st.LastAttempt.Format("2006-01-02 15:04"), t.Store.Len())
		default:
			fmt.Printf("%s: last sync %s (+%d -%d), %d entries\n",
				k, st.LastAttempt.Format("2006-01-02 15:04"), st.Added, st.Removed, t.Store.Len())
		}
	}
}
