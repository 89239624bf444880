package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conclave-ai/conclave/internal/config"
	"github.com/conclave-ai/conclave/internal/history"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past pipeline runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		return listHistory()
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show [run-id]",
	Short: "Show one run's responses",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return showHistory(args[0])
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of runs to list")
	historyCmd.AddCommand(historyShowCmd)
}

func openHistory() (*history.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	path := cfg.History.Path
	if path == "" {
		path = history.GlobalDBPath()
	}
	db, err := history.Open(path)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func listHistory() error {
	db, err := openHistory()
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := db.ListRuns(historyLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no recorded runs")
		return nil
	}

	for _, r := range runs {
		statusColor := color.New(color.FgGreen)
		switch r.Status {
		case history.RunFailed:
			statusColor = color.New(color.FgRed)
		case history.RunAborted, history.RunActive:
			statusColor = color.New(color.FgYellow)
		}

		question := r.Question
		if len(question) > 60 {
			question = question[:57] + "..."
		}
		fmt.Printf("%s  %s  %-7s  %s  %s\n",
			r.ID[:8],
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			r.Mode,
			statusColor.Sprintf("%-9s", r.Status),
			question,
		)
	}
	return nil
}

func showHistory(idPrefix string) error {
	db, err := openHistory()
	if err != nil {
		return err
	}
	defer db.Close()

	run, err := findRun(db, idPrefix)
	if err != nil {
		return err
	}

	color.Cyan("run %s (%s, %s)", run.ID, run.Mode, run.Status)
	fmt.Printf("question: %s\n", run.Question)

	responses, err := db.ListStageResponses(run.ID)
	if err != nil {
		return err
	}
	for _, sr := range responses {
		color.Cyan("\n--- stage %d: %s ---", sr.Stage, sr.Agent)
		fmt.Println(sr.Content)
	}
	return nil
}

// findRun resolves a run by full ID or unique prefix.
func findRun(db *history.DB, idPrefix string) (*history.Run, error) {
	if run, err := db.GetRun(idPrefix); err != nil {
		return nil, err
	} else if run != nil {
		return run, nil
	}

	runs, err := db.ListRuns(1000)
	if err != nil {
		return nil, err
	}
	var match *history.Run
	for _, r := range runs {
		if len(idPrefix) > 0 && len(r.ID) >= len(idPrefix) && r.ID[:len(idPrefix)] == idPrefix {
			if match != nil {
				return nil, fmt.Errorf("run id prefix %q is ambiguous", idPrefix)
			}
			match = r
		}
	}
	if match == nil {
		return nil, fmt.Errorf("no run matches %q", idPrefix)
	}
	return match, nil
}
