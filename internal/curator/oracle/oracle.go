// Package oracle defines the LLM oracle contract the curator depends on and
// a reference adapter onto Anthropic's Claude API.
package oracle

import "context"

// Oracle is §4.5's "ask(prompt) -> JSON" contract. Implementations are free
// to call any text-generating model; the curator treats every reply as
// adversarial prose that merely contains JSON somewhere in it.
type Oracle interface {
	Ask(ctx context.Context, prompt string) (string, error)
}
