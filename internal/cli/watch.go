package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Observe the external store and sync on change",
		Long: "Enables sync for the selected trackers, subscribes to external-store\n" +
			"change notifications and runs incremental syncs as they arrive, until\n" +
			"interrupted.",
		Run: runWatch,
	}
	cmd.Flags().StringVarP(&syncKind, "kind", "k", "", "Tracker (default: all)")
	RootCmd.AddCommand(cmd)
}

func runWatch(cmd *cobra.Command, args []string) {
	a, err := buildApp()
	if err != nil {
		exitErr("startup", err)
	}
	defer a.close()

	active := 0
	for _, t := range selectTrackers(a, syncKind) {
		if err := t.Sync.Enable(cmd.Context()); err != nil {
			fmt.Printf("%s: could not enable sync: %v\n", t.Profile.Kind, err)
			continue
		}
		fmt.Printf("%s: observing\n", t.Profile.Kind)
		active++
	}
	if active == 0 {
		exitErr("watch", fmt.Errorf("no tracker could be enabled"))
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	fmt.Println("shutting down")
}
