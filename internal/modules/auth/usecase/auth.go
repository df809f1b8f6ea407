package usecase

import (
	"context"

	"coursedl/internal/modules/auth/domain"
	"coursedl/internal/modules/auth/dto"
	authin "coursedl/internal/modules/auth/port/in"
	"coursedl/internal/modules/auth/service"
)

type Interactor struct {
	svc *service.AuthService
}

func NewInteractor(svc *service.AuthService) authin.Usecase {
	return &Interactor{svc: svc}
}

func (i *Interactor) Authenticate(ctx context.Context, input dto.AuthenticateInput) (dto.SessionOutput, error) {
	sess, origin, err := i.svc.Authenticate(ctx, service.Request{
		CourseID:    input.CourseID,
		Credentials: domain.Credentials{Username: input.Username, Password: input.Password},
		UseNetrc:    input.UseNetrc,
		NetrcPath:   input.NetrcPath,
		CookiesFile: input.CookiesFile,
	})
	if err != nil {
		return dto.SessionOutput{}, err
	}
	return dto.SessionOutput{Session: sess, Username: sess.Username(), Origin: string(origin)}, nil
}

func (i *Interactor) ResolveCredentials(ctx context.Context, input dto.CredentialsInput) (dto.CredentialsOutput, error) {
	creds, err := i.svc.ResolveCredentials(ctx, service.Request{
		Credentials: domain.Credentials{Username: input.Username, Password: input.Password},
		UseNetrc:    input.UseNetrc,
		NetrcPath:   input.NetrcPath,
	})
	if err != nil {
		return dto.CredentialsOutput{}, err
	}
	return dto.CredentialsOutput{Username: creds.Username, Password: creds.Password}, nil
}

func (i *Interactor) ClearCache(ctx context.Context, input dto.ClearCacheInput) error {
	return i.svc.ClearCache(ctx, input.Username)
}
