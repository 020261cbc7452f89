package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/wayfarer-travel/wayfarer/pkg/ai"
	"github.com/wayfarer-travel/wayfarer/pkg/currency"
	"github.com/wayfarer-travel/wayfarer/pkg/flags"
	"github.com/wayfarer-travel/wayfarer/pkg/insights/feedback"
	"github.com/wayfarer-travel/wayfarer/pkg/insights/patterns"
	"github.com/wayfarer-travel/wayfarer/pkg/knowledgebase"
	"github.com/wayfarer-travel/wayfarer/pkg/server"
)

type ServerFlags struct {
	AIFlags            *flags.AIFlags
	APIFlags           *flags.APIFlags
	CacheFlags         *flags.CacheFlags
	DBFlags            *flags.PostgresFlags
	KnowledgeBaseFlags *flags.KnowledgeBaseFlags
}

func NewServerFlags() *ServerFlags {
	return &ServerFlags{
		AIFlags:            flags.NewAIFlags(),
		APIFlags:           flags.NewAPIFlags(),
		CacheFlags:         flags.NewCacheFlags(),
		DBFlags:            flags.NewPostgresDatabaseFlags(""),
		KnowledgeBaseFlags: flags.NewKnowledgeBaseFlags(),
	}
}

func (f *ServerFlags) BindFlags(flagSet *pflag.FlagSet) {
	f.AIFlags.BindFlags(flagSet)
	f.APIFlags.BindFlags(flagSet)
	f.CacheFlags.BindFlags(flagSet)
	f.DBFlags.BindFlags(flagSet)
	f.KnowledgeBaseFlags.BindFlags(flagSet)
}

func NewServeCommand() *cobra.Command {
	f := NewServerFlags()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the wayfarer API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			dbc, err := f.DBFlags.GetDBClient()
			if err != nil {
				return errors.WithMessage(err, "couldn't get DB client")
			}

			cacheClient, err := f.CacheFlags.GetCacheClient()
			if err != nil {
				return errors.WithMessage(err, "couldn't get cache client")
			}

			documentStore, err := f.KnowledgeBaseFlags.GetDocumentStore(cmd.Context())
			if err != nil {
				return errors.WithMessage(err, "couldn't get knowledge base store")
			}

			llmClient := f.AIFlags.GetLLMClient()
			enhancer := ai.NewEnhancer(llmClient)
			agent := ai.NewAgent(llmClient)

			patternStore := patterns.NewDBStore(dbc, cacheClient)
			analyzer := patterns.NewAnalyzer(patternStore)
			matcher := patterns.NewMatcher(patternStore)
			recorder := feedback.NewRecorder(feedback.NewDBStore(dbc), analyzer)

			learningStore := knowledgebase.NewDBStore(dbc)
			updater := knowledgebase.NewUpdater(learningStore, documentStore)

			currencySvc := currency.NewService("", cacheClient)

			srv := server.NewServer(
				f.APIFlags.ListenAddr,
				f.APIFlags.MetricsAddr,
				dbc,
				enhancer,
				agent,
				recorder,
				analyzer,
				matcher,
				patternStore,
				learningStore,
				updater,
				currencySvc,
			)
			srv.Serve()
			return nil
		},
	}

	f.BindFlags(cmd.Flags())
	return cmd
}
