package logger

import (
	"context"

	"github.com/google/uuid"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// WithWallet adds the caller's wallet address to the context.
func WithWallet(ctx context.Context, wallet string) context.Context {
	return context.WithValue(ctx, ContextKeyWallet, wallet)
}

// WithResearchID adds a research item ID to the context.
func WithResearchID(ctx context.Context, researchID string) context.Context {
	return context.WithValue(ctx, ContextKeyResearchID, researchID)
}

// WithOperation adds an operation name to the context.
func WithOperation(ctx context.Context, operation string) context.Context {
	return context.WithValue(ctx, ContextKeyOperation, operation)
}

// GenerateRequestID generates a new request ID.
func GenerateRequestID() string {
	requestID := uuid.New()
	return requestID.String()
}
