package flags

import (
	"github.com/spf13/pflag"

	"github.com/wayfarer-travel/wayfarer/pkg/ai"
)

// AIFlags contains flags related to Wayfarer's use of generative AI.
type AIFlags struct {
	Endpoint string
	Model    string
}

func NewAIFlags() *AIFlags {
	return &AIFlags{}
}

func (f *AIFlags) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&f.Endpoint, "ai-endpoint", "", "URL for an OpenAI-compatible endpoint. Set OPENAI_API_KEY to specify an API key.")
	fs.StringVar(&f.Model, "ai-model", "gpt-4o", "The AI model to use for insight enhancement and chat")
}

func (f *AIFlags) GetLLMClient() *ai.LLMClient {
	return ai.NewLLMClient(f.Endpoint, f.Model)
}
