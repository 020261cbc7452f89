package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/wayfarer-travel/wayfarer/pkg/flags"
	"github.com/wayfarer-travel/wayfarer/pkg/knowledgebase"
)

// NewApplyKnowledgeBaseCommand merges approved learnings into the knowledge
// document. With --dry-run it reports what would change without writing.
func NewApplyKnowledgeBaseCommand() *cobra.Command {
	dbFlags := flags.NewPostgresDatabaseFlags("")
	kbFlags := flags.NewKnowledgeBaseFlags()
	var dryRun bool
	var report bool

	cmd := &cobra.Command{
		Use:   "apply-knowledge-base",
		Short: "Apply approved learnings to the knowledge base document",
		RunE: func(cmd *cobra.Command, args []string) error {
			dbc, err := dbFlags.GetDBClient()
			if err != nil {
				return errors.WithMessage(err, "couldn't get DB client")
			}

			documentStore, err := kbFlags.GetDocumentStore(cmd.Context())
			if err != nil {
				return errors.WithMessage(err, "couldn't get knowledge base store")
			}

			updater := knowledgebase.NewUpdater(knowledgebase.NewDBStore(dbc), documentStore)

			if report {
				summary, err := updater.SummaryReport()
				if err != nil {
					return errors.WithMessage(err, "could not generate report")
				}
				fmt.Fprintln(os.Stdout, summary)
				return nil
			}

			result, err := updater.Apply(cmd.Context(), dryRun)
			if err != nil {
				return errors.WithMessage(err, "could not apply learnings")
			}

			out, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(os.Stdout, string(out))
			return nil
		},
	}

	dbFlags.BindFlags(cmd.Flags())
	kbFlags.BindFlags(cmd.Flags())
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would be applied without writing")
	cmd.Flags().BoolVar(&report, "report", false, "Print the approved-learnings review report instead of applying")
	return cmd
}
