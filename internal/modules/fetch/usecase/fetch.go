package usecase

import (
	"context"

	"coursedl/internal/modules/fetch/domain"
	"coursedl/internal/modules/fetch/dto"
	fetchin "coursedl/internal/modules/fetch/port/in"
	"coursedl/internal/modules/fetch/service"
	"coursedl/internal/platform/websession"
)

type Interactor struct {
	svc *service.FetchService
}

func NewInteractor(svc *service.FetchService) fetchin.Usecase {
	return &Interactor{svc: svc}
}

func (i *Interactor) Fetch(ctx context.Context, session *websession.Session, input dto.FetchInput) (dto.TaskOutput, error) {
	task := i.svc.Fetch(ctx, session, domain.NewTask(input.CourseID, input.Name, input.URL, input.Kind, input.DestPath))
	return dto.TaskOutput{
		CourseID: task.CourseID,
		Name:     task.Name,
		URL:      task.URL,
		Kind:     task.Kind,
		DestPath: task.DestPath,
		Status:   string(task.Status),
		Bytes:    task.Bytes,
		Attempts: task.Attempts,
		Err:      task.Err,
	}, task.Err
}

func (i *Interactor) Verify(ctx context.Context, input dto.VerifyInput) (dto.VerifyOutput, error) {
	v, err := i.svc.Verify(ctx, input.Path)
	if err != nil {
		return dto.VerifyOutput{}, err
	}
	return dto.VerifyOutput{Path: v.Path, Bytes: v.Bytes, Pages: v.Pages, OK: v.OK, Reason: v.Reason}, nil
}
