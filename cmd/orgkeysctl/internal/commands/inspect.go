package commands

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/orgkeys/internal/clock"
	"github.com/smallbiznis/orgkeys/internal/credential/token"
)

// InspectCmd checks signature and expiry only. Revocation and one-time
// consumption live in the store, which this tool never reads.
type InspectCmd struct {
	Secret string `help:"Credential signing secret" required:"" env:"API_TOKEN_SECRET"`
	Token  string `arg:"" help:"Raw credential"`

	clock clock.Clock
}

type inspectOutput struct {
	Valid     bool       `json:"valid"`
	Failure   string     `json:"failure,omitempty"`
	Subject   string     `json:"sub,omitempty"`
	OrgID     string     `json:"orgId,omitempty"`
	Scopes    []string   `json:"scopes,omitempty"`
	OneTime   bool       `json:"oneTime,omitempty"`
	IssuedAt  *time.Time `json:"iat,omitempty"`
	ExpiresAt *time.Time `json:"exp,omitempty"`
	Hash      string     `json:"hash"`
}

func (c *InspectCmd) Run(ctx context.Context, globals *Globals) error {
	clk := c.clock
	if clk == nil {
		clk = clock.New()
	}

	out := inspectOutput{Hash: token.Hash(c.Token)}
	claims, err := token.NewIssuer(token.Config{Secret: []byte(c.Secret)}, clk).Parse(c.Token)
	switch {
	case errors.Is(err, token.ErrConfiguration):
		return err
	case err != nil:
		out.Failure = err.Error()
	default:
		out.Valid = true
		out.Subject = claims.Subject
		out.OrgID = claims.OrgID
		out.Scopes = claims.Scopes
		out.OneTime = claims.OneTime
		if claims.IssuedAt != nil {
			iat := claims.IssuedAt.Time.UTC()
			out.IssuedAt = &iat
		}
		if claims.ExpiresAt != nil {
			exp := claims.ExpiresAt.Time.UTC()
			out.ExpiresAt = &exp
		}
	}

	return printJSON(globals.out(), out)
}
