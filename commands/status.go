package commands

import (
	"fmt"
	"io"

	"github.com/penwyp/go-ici-sync/internal/util"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show identity, storage and service reachability",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	probeErr := s.Probe(cmd.Context())
	cfg := s.Config()
	local := s.Local()
	pending := len(local.ReadAll())
	snap := s.Status()

	out := cmd.OutOrStdout()
	statusLine(out, "identity", s.Identity())
	statusLine(out, "environment", cfg.EnvID)
	statusLine(out, "server", cfg.Server)
	statusLine(out, "store", fmt.Sprintf("%s (%s)", cfg.Backend, local.Namespace()))
	statusLine(out, "private log", fmt.Sprintf("%d entries", pending))
	if err := local.LastError(); err != nil {
		statusLine(out, "store error", fmt.Sprintf("%v (raw value kept until next write, then moved to %s)", err, local.QuarantineKey()))
	}
	statusLine(out, "service", fmt.Sprintf("%s for %s", snap.State, formatAge(snap.Since)))
	if probeErr != nil {
		statusLine(out, "last error", probeErr.Error())
	}
	return nil
}

const statusLabelWidth = 13

func statusLine(w io.Writer, label, value string) {
	fmt.Fprintf(w, "%s%s\n", util.PadToWidth(label+":", statusLabelWidth), value)
}
