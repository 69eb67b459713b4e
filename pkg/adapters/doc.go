// Package adapters provides provider-agnostic LLM adapter interfaces and the
// bridge from a Provider to the chain runner's Invoker.
//
// Subpackages:
//   - openai
//   - anthropic
//   - gemini
//   - ollama
//   - echo
package adapters
