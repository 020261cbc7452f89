package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	insightsv1 "github.com/wayfarer-travel/wayfarer/pkg/apis/insights/v1"
	"github.com/wayfarer-travel/wayfarer/pkg/flags"
	"github.com/wayfarer-travel/wayfarer/pkg/insights/patterns"
)

// NewAnalyzePatternsCommand recomputes feedback patterns from the command
// line, outside the milestone-triggered path.
func NewAnalyzePatternsCommand() *cobra.Command {
	dbFlags := flags.NewPostgresDatabaseFlags("")
	cacheFlags := flags.NewCacheFlags()
	var category string

	cmd := &cobra.Command{
		Use:   "analyze-patterns",
		Short: "Recompute insight patterns from stored feedback",
		RunE: func(cmd *cobra.Command, args []string) error {
			dbc, err := dbFlags.GetDBClient()
			if err != nil {
				return errors.WithMessage(err, "couldn't get DB client")
			}

			cacheClient, err := cacheFlags.GetCacheClient()
			if err != nil {
				return errors.WithMessage(err, "couldn't get cache client")
			}

			store := patterns.NewDBStore(dbc, cacheClient)
			results, err := patterns.NewAnalyzer(store).Analyze(insightsv1.Category(category))
			if err != nil {
				return errors.WithMessage(err, "pattern analysis failed")
			}

			out, err := json.MarshalIndent(results, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(os.Stdout, string(out))
			return nil
		},
	}

	dbFlags.BindFlags(cmd.Flags())
	cacheFlags.BindFlags(cmd.Flags())
	cmd.Flags().StringVar(&category, "category", "", "Limit analysis to one insight category")
	return cmd
}
