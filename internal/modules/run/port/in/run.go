package in

import (
	"context"

	"coursedl/internal/modules/run/dto"
)

type Usecase interface {
	Run(ctx context.Context, input dto.RunInput) (dto.SummaryOutput, error)
	History(ctx context.Context, input dto.HistoryInput) ([]dto.EntryOutput, error)
	Verify(ctx context.Context, input dto.VerifyInput) (dto.VerifyOutput, error)
}
