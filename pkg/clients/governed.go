package clients

import (
	"context"

	"github.com/mikeboe/research-crew/pkg/retry"
)

// GovernedCompleter routes every Generate call through a retry Governor.
type GovernedCompleter struct {
	Next     Completer
	Governor *retry.Governor
}

func NewGovernedCompleter(next Completer, g *retry.Governor) *GovernedCompleter {
	return &GovernedCompleter{Next: next, Governor: g}
}

func (c *GovernedCompleter) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	var text string
	err := c.Governor.Do(ctx, func(ctx context.Context) error {
		out, err := c.Next.Generate(ctx, prompt, opts)
		if err != nil {
			return err
		}
		text = out
		return nil
	})
	return text, err
}
