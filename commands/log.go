package commands

import (
	"github.com/penwyp/go-ici-sync/internal/presentation/formatter"
	"github.com/penwyp/go-ici-sync/internal/presentation/layout"
	"github.com/spf13/cobra"
)

var (
	logShared bool
	logOutput string
	logWidth  int
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Show the private or the shared log grouped by author and minute",
	RunE:  runLog,
}

func init() {
	rootCmd.AddCommand(logCmd)

	logCmd.Flags().BoolVar(&logShared, "shared", false, "Show the shared log instead of the private one")
	logCmd.Flags().StringVarP(&logOutput, "output", "o", "text", "Output format (text, json)")
	logCmd.Flags().IntVar(&logWidth, "width", -1, "Line width for text output (-1 = terminal width, 0 = no limit)")
}

func runLog(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	var view formatter.View
	if logShared {
		view = s.SharedView(cmd.Context())
	} else {
		view = s.PrivateView()
	}
	return newFormatter(logOutput, logWidth).Format(cmd.OutOrStdout(), view)
}

func newFormatter(output string, width int) formatter.Formatter {
	sizer := layout.NewSizer()
	if width < 0 {
		width = sizer.Width()
	}
	return formatter.New(output, width, sizer.IsTerminal())
}
