package commands

import (
	"fmt"

	"github.com/penwyp/go-ici-sync/internal/core/reconcile"
	"github.com/spf13/cobra"
)

var syncForce bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Merge private entries missing from the shared log",
	RunE:  runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().BoolVarP(&syncForce, "force", "f", true, "Attempt the sync even if the service was last seen offline")
}

func runSync(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	res := s.Reconcile(cmd.Context(), syncForce)
	fmt.Fprintf(cmd.OutOrStdout(), "%s: pushed %d, shared log has %d entries\n", res.Status, res.Pushed, res.RemoteSize)
	if res.Status == reconcile.StatusFailed {
		return res.Err
	}
	return nil
}
