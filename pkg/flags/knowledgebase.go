package flags

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
	"github.com/spf13/pflag"

	"github.com/wayfarer-travel/wayfarer/pkg/knowledgebase"
)

// KnowledgeBaseFlags configures where the knowledge document lives: a local
// markdown file, or an object in a GCS bucket when one is named.
type KnowledgeBaseFlags struct {
	Path      string
	GCSBucket string
	GCSObject string
}

func NewKnowledgeBaseFlags() *KnowledgeBaseFlags {
	return &KnowledgeBaseFlags{
		Path:      "KNOWLEDGE_BASE.md",
		GCSObject: "KNOWLEDGE_BASE.md",
	}
}

func (f *KnowledgeBaseFlags) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&f.Path, "knowledge-base", f.Path, "Path to the knowledge base markdown file")
	fs.StringVar(&f.GCSBucket, "knowledge-base-gcs-bucket", "", "GCS bucket holding the knowledge base; overrides --knowledge-base")
	fs.StringVar(&f.GCSObject, "knowledge-base-gcs-object", f.GCSObject, "GCS object name for the knowledge base")
}

func (f *KnowledgeBaseFlags) GetDocumentStore(ctx context.Context) (knowledgebase.DocumentStore, error) {
	if f.GCSBucket != "" {
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("creating gcs client: %w", err)
		}
		return knowledgebase.NewGCSStore(client, f.GCSBucket, f.GCSObject), nil
	}

	return knowledgebase.NewFileStore(f.Path), nil
}
