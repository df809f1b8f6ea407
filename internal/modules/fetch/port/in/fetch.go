package in

import (
	"context"

	"coursedl/internal/modules/fetch/dto"
	"coursedl/internal/platform/websession"
)

type Usecase interface {
	// Fetch always returns the task; err is set when the task failed.
	Fetch(ctx context.Context, session *websession.Session, input dto.FetchInput) (dto.TaskOutput, error)
	Verify(ctx context.Context, input dto.VerifyInput) (dto.VerifyOutput, error)
}
