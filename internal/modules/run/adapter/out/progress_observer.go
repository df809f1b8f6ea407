package out

import (
	"coursedl/internal/modules/run/domain"
	"coursedl/internal/ui/progress"
)

// ProgressObserver forwards run events to the terminal progress view.
type ProgressObserver struct {
	program *progress.Program
}

func NewProgressObserver(program *progress.Program) *ProgressObserver {
	return &ProgressObserver{program: program}
}

func (o *ProgressObserver) CourseStarted(courseID string, tasks int) {
	o.program.Send(progress.CourseStartedMsg{CourseID: courseID, Tasks: tasks})
}

func (o *ProgressObserver) TaskFinished(task domain.TaskResult) {
	msg := progress.TaskFinishedMsg{CourseID: task.CourseID, Name: task.Name, Status: task.Status, Bytes: task.Bytes}
	if task.Err != nil {
		msg.Err = task.Err.Error()
	}
	o.program.Send(msg)
}

func (o *ProgressObserver) CourseFinished(result domain.CourseResult) {
	msg := progress.CourseFinishedMsg{
		CourseID: result.CourseID,
		Outcome:  result.Outcome(),
		Done:     result.Done,
		Skipped:  result.Skipped,
		Failed:   result.Failed,
		Bytes:    result.Bytes,
	}
	if result.Err != nil {
		msg.Err = result.Err.Error()
	}
	o.program.Send(msg)
}
