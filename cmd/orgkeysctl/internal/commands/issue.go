package commands

import (
	"context"
	"time"

	"github.com/smallbiznis/orgkeys/internal/clock"
	"github.com/smallbiznis/orgkeys/internal/credential/token"
)

type IssueCmd struct {
	Secret    string        `help:"Credential signing secret" required:"" env:"API_TOKEN_SECRET"`
	Subject   string        `name:"sub" help:"Principal the credential acts for" required:""`
	Org       string        `help:"Organization identifier" required:""`
	Scopes    []string      `name:"scope" help:"Service scope, repeatable" required:""`
	ExpiresIn time.Duration `help:"Lifetime; zero means the credential never expires" default:"0s"`
	OneTime   bool          `help:"Mark the credential single-use"`

	clock clock.Clock
}

type issueOutput struct {
	Token     string     `json:"token"`
	Hash      string     `json:"hash"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func (c *IssueCmd) Run(ctx context.Context, globals *Globals) error {
	clk := c.clock
	if clk == nil {
		clk = clock.New()
	}

	req := token.IssueRequest{
		PrincipalID:    c.Subject,
		OrganizationID: c.Org,
		Scopes:         c.Scopes,
		OneTime:        c.OneTime,
	}
	if c.ExpiresIn < 0 {
		return token.ErrInvalidExpiry
	}
	if c.ExpiresIn > 0 {
		expiresAt := clk.Now().Add(c.ExpiresIn).UTC()
		req.ExpiresAt = &expiresAt
	}

	issued, err := token.NewIssuer(token.Config{Secret: []byte(c.Secret)}, clk).Issue(req)
	if err != nil {
		return err
	}

	return printJSON(globals.out(), issueOutput{
		Token:     issued.Token,
		Hash:      issued.Hash,
		ExpiresAt: req.ExpiresAt,
	})
}
