// Package agent drives one conversational turn with the coding agent.
//
// The package is organised around three pieces:
//   - Agent, the collaborator that turns a conversation into a Response
//     (LLMAgent adapts any llm.LLMClient to it)
//   - History, the bounded conversation owned by the Service
//   - Service, which interprets responses as plans, tool requests or final
//     answers and moves the turn state machine accordingly
//
// Provider adapters live under internal/llmimpl and are only reachable
// through NewLLMClient.
package agent
