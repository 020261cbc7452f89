package ai

import (
	"context"

	log "github.com/sirupsen/logrus"
)

const agentInstructions = `You are Wayfarer, an AI travel agent that unifies fragmented travel systems. Your goal is to identify problems, find solutions, and coordinate across platforms. Be proactive and intelligent.`

const agentFallbackReply = "I am currently experiencing a system issue. Please try again later."

// Agent answers single-turn operator chat messages. A failing upstream
// degrades to a fixed apology rather than an error; chat is a convenience
// surface, not a system of record.
type Agent struct {
	llm *LLMClient
}

func NewAgent(llm *LLMClient) *Agent {
	return &Agent{llm: llm}
}

func (a *Agent) ProcessMessage(ctx context.Context, message string) string {
	reply, err := a.llm.Chat(ctx, agentInstructions, message)
	if err != nil {
		log.WithError(err).Error("chat agent completion failed")
		return agentFallbackReply
	}
	return reply
}
