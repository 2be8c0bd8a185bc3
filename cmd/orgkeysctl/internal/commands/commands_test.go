package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"github.com/smallbiznis/orgkeys/internal/clock"
	"github.com/smallbiznis/orgkeys/internal/credential/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "ctl-secret"

func issue(t *testing.T, clk clock.Clock, cmd IssueCmd) issueOutput {
	t.Helper()
	var buf bytes.Buffer
	cmd.Secret = testSecret
	cmd.clock = clk
	require.NoError(t, cmd.Run(context.Background(), &Globals{Out: &buf}))

	var out issueOutput
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	return out
}

func TestIssueThenInspect(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	issued := issue(t, clk, IssueCmd{Subject: "1001", Org: "42", Scopes: []string{"service_ocr"}, ExpiresIn: time.Hour, OneTime: true})
	assert.Equal(t, token.Hash(issued.Token), issued.Hash)
	require.NotNil(t, issued.ExpiresAt)

	var buf bytes.Buffer
	inspect := InspectCmd{Secret: testSecret, Token: issued.Token, clock: clk}
	require.NoError(t, inspect.Run(context.Background(), &Globals{Out: &buf}))

	var out inspectOutput
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.True(t, out.Valid)
	assert.Equal(t, "1001", out.Subject)
	assert.Equal(t, "42", out.OrgID)
	assert.Equal(t, []string{"SERVICE_OCR"}, out.Scopes)
	assert.True(t, out.OneTime)
}

func TestInspectReportsFailureKind(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	issued := issue(t, clk, IssueCmd{Subject: "1001", Org: "42", Scopes: []string{"SERVICE_FILES"}, ExpiresIn: time.Minute})

	cases := map[string]struct {
		secret  string
		advance time.Duration
		want    string
	}{
		"expired":      {secret: testSecret, advance: 2 * time.Minute, want: "expired_credential"},
		"wrong secret": {secret: "other", want: "invalid_credential"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			local := clock.NewFakeClock(clk.Now().Add(tc.advance))
			var buf bytes.Buffer
			inspect := InspectCmd{Secret: tc.secret, Token: issued.Token, clock: local}
			require.NoError(t, inspect.Run(context.Background(), &Globals{Out: &buf}))

			var out inspectOutput
			require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
			assert.False(t, out.Valid)
			assert.Equal(t, tc.want, out.Failure)
		})
	}
}

func TestIssueRejectsBadInput(t *testing.T) {
	var buf bytes.Buffer
	cmd := IssueCmd{Secret: testSecret, Subject: "1", Org: "2", Scopes: []string{"SERVICE_NOPE"}}
	assert.Error(t, cmd.Run(context.Background(), &Globals{Out: &buf}))

	cmd = IssueCmd{Secret: testSecret, Subject: "1", Org: "2", Scopes: []string{"SERVICE_OCR"}, ExpiresIn: -time.Second}
	assert.ErrorIs(t, cmd.Run(context.Background(), &Globals{Out: &buf}), token.ErrInvalidExpiry)

	cmd = IssueCmd{Subject: "1", Org: "2", Scopes: []string{"SERVICE_OCR"}}
	assert.ErrorIs(t, cmd.Run(context.Background(), &Globals{Out: &buf}), token.ErrConfiguration)
}

func TestHash(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&HashCmd{Token: "abc"}).Run(context.Background(), &Globals{Out: &buf}))
	assert.Equal(t, token.Hash("abc"), strings.TrimSpace(buf.String()))
}

func TestKongParsesIssueFlags(t *testing.T) {
	var cli struct {
		Issue IssueCmd `cmd:""`
	}
	parser, err := kong.New(&cli)
	require.NoError(t, err)

	_, err = parser.Parse([]string{"issue", "--secret", "s", "--sub", "7", "--org", "9", "--scope", "SERVICE_OCR", "--scope", "SERVICE_FILES", "--one-time"})
	require.NoError(t, err)
	assert.Equal(t, "7", cli.Issue.Subject)
	assert.Equal(t, []string{"SERVICE_OCR", "SERVICE_FILES"}, cli.Issue.Scopes)
	assert.True(t, cli.Issue.OneTime)
}
