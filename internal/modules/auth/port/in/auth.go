package in

import (
	"context"

	"coursedl/internal/modules/auth/dto"
)

type Usecase interface {
	Authenticate(ctx context.Context, input dto.AuthenticateInput) (dto.SessionOutput, error)
	ResolveCredentials(ctx context.Context, input dto.CredentialsInput) (dto.CredentialsOutput, error)
	ClearCache(ctx context.Context, input dto.ClearCacheInput) error
}
