package in

import (
	"context"

	"coursedl/internal/modules/auth/dto"
	authin "coursedl/internal/modules/auth/port/in"
)

type CLIHandler struct {
	usecase authin.Usecase
}

func NewCLIHandler(usecase authin.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

func (h CLIHandler) ClearCache(ctx context.Context, username string) error {
	return h.usecase.ClearCache(ctx, dto.ClearCacheInput{Username: username})
}
