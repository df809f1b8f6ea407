package in

import (
	"context"

	"coursedl/internal/modules/catalog/dto"
	"coursedl/internal/platform/websession"
)

type Usecase interface {
	ListResources(ctx context.Context, session *websession.Session, input dto.ListInput) (dto.Listing, error)
}
