package commands

import (
	"context"
	"fmt"

	"github.com/smallbiznis/orgkeys/internal/credential/token"
)

type HashCmd struct {
	Token string `arg:"" help:"Raw credential"`
}

func (c *HashCmd) Run(ctx context.Context, globals *Globals) error {
	_, err := fmt.Fprintln(globals.out(), token.Hash(c.Token))
	return err
}
