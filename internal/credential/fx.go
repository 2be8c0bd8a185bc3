package credential

import (
	"github.com/smallbiznis/orgkeys/internal/clock"
	"github.com/smallbiznis/orgkeys/internal/config"
	"github.com/smallbiznis/orgkeys/internal/credential/repository"
	"github.com/smallbiznis/orgkeys/internal/credential/service"
	"github.com/smallbiznis/orgkeys/internal/credential/token"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("credential.service",
	fx.Provide(NewIssuer),
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)

// NewIssuer reads the signing secret once. A missing secret is reported on
// every issuance as a configuration error rather than failing startup.
func NewIssuer(cfg config.Config, clk clock.Clock, log *zap.Logger) *token.Issuer {
	if cfg.TokenSecret == "" {
		log.Warn("API_TOKEN_SECRET is empty; credential issuance and verification are disabled")
	}
	return token.NewIssuer(token.Config{Secret: []byte(cfg.TokenSecret)}, clk)
}
