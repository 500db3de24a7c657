package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var clearYes bool

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every message from the private and the shared log",
	Long: `clear empties the private log and replaces the shared log of the environment
with an empty snapshot. Other devices may re-share their own private entries.`,
	RunE: runClear,
}

func init() {
	rootCmd.AddCommand(clearCmd)
	clearCmd.Flags().BoolVarP(&clearYes, "yes", "y", false, "Confirm deletion")
}

func runClear(cmd *cobra.Command, args []string) error {
	if !clearYes {
		return fmt.Errorf("refusing to clear without --yes")
	}
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.Clear(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "cleared private and shared logs")
	return nil
}
