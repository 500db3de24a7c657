package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Store a question in the private log and share it",
	Long: `ask appends the question to the private log, reconciles it into the shared
log and, unless --ask=false, requests an answer which is attached locally and
posted to the shared log as an AI entry.

While the service is unreachable the question stays in the private log and is
shared by the next successful sync.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	res, err := s.Submit(cmd.Context(), strings.Join(args, " "))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "stored %s (sync: %s)\n", res.Message.Key(), res.Reconcile.Status)
	switch {
	case res.AnswerErr != nil:
		fmt.Fprintf(out, "no answer: %v\n", res.AnswerErr)
	case res.Answer != "":
		fmt.Fprintf(out, "A: %s\n", res.Answer)
		if res.ShareErr != nil {
			fmt.Fprintf(out, "answer not shared: %v\n", res.ShareErr)
		}
	}
	return nil
}
