// Package context carries request-scoped correlation fields used by logs,
// traces and the audit trail.
package context

import (
	"context"
	"strings"
)

type requestIDKey struct{}
type orgIDKey struct{}
type actorKey struct{}
type clientKey struct{}

type actor struct {
	actorType string
	actorID   string
}

type client struct {
	ip        string
	userAgent string
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, strings.TrimSpace(requestID))
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDKey{}).(string)
	return value
}

func WithOrgID(ctx context.Context, orgID string) context.Context {
	return context.WithValue(ctx, orgIDKey{}, strings.TrimSpace(orgID))
}

func OrgIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(orgIDKey{}).(string)
	return value
}

func WithActor(ctx context.Context, actorType, actorID string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor{
		actorType: strings.TrimSpace(actorType),
		actorID:   strings.TrimSpace(actorID),
	})
}

func ActorFromContext(ctx context.Context) (string, string) {
	if ctx == nil {
		return "", ""
	}
	value, _ := ctx.Value(actorKey{}).(actor)
	return value.actorType, value.actorID
}

func WithClient(ctx context.Context, ip, userAgent string) context.Context {
	return context.WithValue(ctx, clientKey{}, client{
		ip:        strings.TrimSpace(ip),
		userAgent: strings.TrimSpace(userAgent),
	})
}

func ClientFromContext(ctx context.Context) (string, string) {
	if ctx == nil {
		return "", ""
	}
	value, _ := ctx.Value(clientKey{}).(client)
	return value.ip, value.userAgent
}
