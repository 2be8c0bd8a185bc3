package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/orgkeys/internal/audit/domain"
	"github.com/smallbiznis/orgkeys/internal/auth/permission"
	"github.com/smallbiznis/orgkeys/internal/auth/scope"
	"github.com/smallbiznis/orgkeys/internal/authorization"
	"github.com/smallbiznis/orgkeys/internal/clock"
	"github.com/smallbiznis/orgkeys/internal/credential/domain"
	"github.com/smallbiznis/orgkeys/internal/credential/token"
	"github.com/smallbiznis/orgkeys/internal/identity"
	"github.com/smallbiznis/orgkeys/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const maxNameLength = 100

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     domain.Repository
	Issuer   *token.Issuer
	Authz    authorization.Service
	Clock    clock.Clock
	AuditSvc auditdomain.Service `optional:"true"`
	Metrics  *metrics.Metrics    `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	repo     domain.Repository
	issuer   *token.Issuer
	authz    authorization.Service
	clock    clock.Clock
	auditSvc auditdomain.Service
	metrics  *metrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("credential.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		issuer:   p.Issuer,
		authz:    p.Authz,
		clock:    p.Clock,
		auditSvc: p.AuditSvc,
		metrics:  p.Metrics,
	}
}

func (s *Service) Issue(ctx context.Context, orgID snowflake.ID, req domain.CreateRequest) (*domain.SecretResponse, error) {
	principal, err := identity.PrincipalFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	name := strings.TrimSpace(req.Name)
	if name == "" || len(name) > maxNameLength {
		return nil, domain.ErrInvalidName
	}

	if _, err := s.authz.AuthorizeMembership(ctx, principal.ID, orgID, permission.CreatePersonalAPIKeys); err != nil {
		return nil, err
	}

	scopes := scope.Normalize(req.Scopes)
	issued, err := s.issuer.Issue(token.IssueRequest{
		PrincipalID:    principal.ID.String(),
		OrganizationID: orgID.String(),
		Scopes:         scopes,
		ExpiresAt:      req.ExpiresAt,
		OneTime:        req.OneTime,
	})
	if err != nil {
		if errors.Is(err, token.ErrConfiguration) {
			s.log.Error("credential signing secret is not configured")
		}
		return nil, err
	}

	record := &domain.APIToken{
		ID:        s.genID.Generate(),
		OrgID:     orgID,
		UserID:    principal.ID,
		Name:      name,
		TokenHash: issued.Hash,
		Suffix:    token.Suffix(issued.Token),
		Scopes:    datatypes.NewJSONSlice(scopes),
		OneTime:   req.OneTime,
		CreatedAt: s.clock.Now().UTC(),
	}
	if req.ExpiresAt != nil {
		// Stored expiry matches the second-precision exp claim.
		expiresAt := req.ExpiresAt.UTC().Truncate(time.Second)
		record.ExpiresAt = &expiresAt
	}

	if err := s.repo.Insert(ctx, s.db, record); err != nil {
		return nil, err
	}

	s.metrics.RecordCredentialIssued(record.OneTime)
	s.audit(ctx, orgID, "", nil, auditdomain.ActionAPITokenCreated, record, map[string]any{
		"name":         record.Name,
		"scopes":       scopes,
		"one_time":     record.OneTime,
		"token_suffix": record.Suffix,
	})

	return &domain.SecretResponse{Response: toResponse(record), Token: issued.Token}, nil
}

// Verify resolves a bearer credential and checks it carries required before
// any state changes. For one-time credentials exactly one concurrent caller
// succeeds; the others get ErrRevokedCredential.
func (s *Service) Verify(ctx context.Context, raw string, required scope.Scope) (*domain.Decoded, error) {
	raw = strings.TrimSpace(raw)
	claims, err := s.issuer.Parse(raw)
	if err != nil {
		return nil, s.rejected(err, 0)
	}

	record, err := s.repo.FindActiveByHash(ctx, s.db, token.Hash(raw))
	if err != nil {
		return nil, s.rejected(err, 0)
	}
	if record == nil {
		return nil, s.rejected(domain.ErrRevokedCredential, 0)
	}
	if record.UserID.String() != claims.Subject || record.OrgID.String() != claims.OrgID || record.OneTime != claims.OneTime {
		return nil, s.rejected(domain.ErrInvalidCredential, record.ID)
	}

	now := s.clock.Now().UTC()
	if record.Expired(now) {
		return nil, s.rejected(domain.ErrExpiredCredential, record.ID)
	}

	decoded := &domain.Decoded{
		CredentialID:   record.ID,
		PrincipalID:    claims.Subject,
		OrganizationID: claims.OrgID,
		Scopes:         scope.Normalize(claims.Scopes),
		OneTime:        record.OneTime,
	}
	if err := s.authz.AuthorizeCredential(decoded, required); err != nil {
		return nil, s.rejected(err, record.ID)
	}

	if record.OneTime {
		won, err := s.repo.Consume(ctx, s.db, record.ID, now)
		if err != nil {
			return nil, s.rejected(err, record.ID)
		}
		if !won {
			return nil, s.rejected(domain.ErrRevokedCredential, record.ID)
		}
		credentialID := record.ID.String()
		s.audit(ctx, record.OrgID, string(auditdomain.ActorTypeCredential), &credentialID, auditdomain.ActionAPITokenConsumed, record, nil)
	} else if err := s.repo.TouchLastUsed(ctx, s.db, record.ID, now); err != nil {
		s.log.Warn("failed to update credential last use",
			zap.String("credential_id", record.ID.String()),
			zap.Error(err),
		)
	}

	s.metrics.RecordVerification(metrics.ResultOK)
	return decoded, nil
}

func (s *Service) List(ctx context.Context, orgID snowflake.ID) ([]domain.Response, error) {
	principal, err := identity.PrincipalFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.authz.AuthorizeAction(ctx, principal.ID, orgID, authorization.ObjectAPIToken, authorization.ActionAPITokenView); err != nil {
		return nil, err
	}

	items, err := s.repo.ListByOwner(ctx, s.db, orgID, principal.ID)
	if err != nil {
		return nil, err
	}

	resp := make([]domain.Response, 0, len(items))
	for i := range items {
		resp = append(resp, toResponse(&items[i]))
	}
	return resp, nil
}

// Delete removes one of the caller's own credentials. Another member's
// credential is reported as not found.
func (s *Service) Delete(ctx context.Context, orgID snowflake.ID, id string) error {
	principal, err := identity.PrincipalFromContext(ctx)
	if err != nil {
		return err
	}
	credentialID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || credentialID <= 0 {
		return domain.ErrInvalidID
	}
	if _, err := s.authz.AuthorizeAction(ctx, principal.ID, orgID, authorization.ObjectAPIToken, authorization.ActionAPITokenDelete); err != nil {
		return err
	}

	record, err := s.repo.FindByID(ctx, s.db, orgID, credentialID)
	if err != nil {
		return err
	}
	if record == nil || record.UserID != principal.ID {
		return domain.ErrNotFound
	}

	deleted, err := s.repo.DeleteByID(ctx, s.db, record.ID)
	if err != nil {
		return err
	}
	if !deleted {
		return domain.ErrNotFound
	}

	s.audit(ctx, orgID, "", nil, auditdomain.ActionAPITokenDeleted, record, map[string]any{
		"name":         record.Name,
		"token_suffix": record.Suffix,
	})
	return nil
}

func (s *Service) rejected(err error, credentialID snowflake.ID) error {
	result := metrics.ResultError
	switch {
	case errors.Is(err, domain.ErrInvalidCredential):
		result = metrics.ResultInvalid
	case errors.Is(err, domain.ErrExpiredCredential):
		result = metrics.ResultExpired
	case errors.Is(err, domain.ErrRevokedCredential):
		result = metrics.ResultRevoked
	case errors.Is(err, authorization.ErrInsufficientScope):
		result = metrics.ResultDenied
	}
	s.metrics.RecordVerification(result)

	fields := []zap.Field{zap.String("result", result)}
	if credentialID != 0 {
		fields = append(fields, zap.String("credential_id", credentialID.String()))
	}
	if result == metrics.ResultError {
		s.log.Error("credential verification failed", append(fields, zap.Error(err))...)
	} else {
		s.log.Debug("credential rejected", fields...)
	}
	return err
}

func (s *Service) audit(ctx context.Context, orgID snowflake.ID, actorType string, actorID *string, action string, record *domain.APIToken, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	targetID := record.ID.String()
	_ = s.auditSvc.AuditLog(ctx, &orgID, actorType, actorID, action, "api_token", &targetID, metadata)
}

func toResponse(record *domain.APIToken) domain.Response {
	scopes := []string(record.Scopes)
	if scopes == nil {
		scopes = []string{}
	}
	return domain.Response{
		ID:         record.ID.String(),
		Name:       record.Name,
		Suffix:     record.Suffix,
		Scopes:     scopes,
		OneTime:    record.OneTime,
		ExpiresAt:  record.ExpiresAt,
		ConsumedAt: record.ConsumedAt,
		LastUsedAt: record.LastUsedAt,
		CreatedAt:  record.CreatedAt,
	}
}
