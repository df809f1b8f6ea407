package in

import (
	"context"

	"coursedl/internal/modules/run/dto"
	runin "coursedl/internal/modules/run/port/in"
)

type CLIHandler struct {
	usecase runin.Usecase
}

func NewCLIHandler(usecase runin.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

func (h CLIHandler) Run(ctx context.Context, input dto.RunInput) (dto.SummaryOutput, error) {
	return h.usecase.Run(ctx, input)
}

func (h CLIHandler) History(ctx context.Context, courseID string, failedOnly bool, limit int) ([]dto.EntryOutput, error) {
	return h.usecase.History(ctx, dto.HistoryInput{CourseID: courseID, FailedOnly: failedOnly, Limit: limit})
}

func (h CLIHandler) Verify(ctx context.Context, courseID string) (dto.VerifyOutput, error) {
	return h.usecase.Verify(ctx, dto.VerifyInput{CourseID: courseID})
}
