package flow

import (
	"context"

	"github.com/Dicklesworthstone/flowverify/internal/db"
)

// HistoryRecorder persists run progress to the history database.
type HistoryRecorder struct {
	db *db.DB
}

// NewHistoryRecorder records runs in database.
func NewHistoryRecorder(database *db.DB) *HistoryRecorder {
	return &HistoryRecorder{db: database}
}

func (h *HistoryRecorder) Begin(_ context.Context, res *Result) error {
	return h.db.CreateRun(&db.Run{
		ID:           res.RunID,
		Scenario:     res.Scenario,
		Driver:       res.Driver,
		BaseURL:      res.BaseURL,
		StudentEmail: res.StudentEmail,
		Status:       res.Status,
		LogPath:      res.LogPath,
		StartedAt:    res.StartedAt,
	})
}

func (h *HistoryRecorder) Started(_ context.Context, res *Result) error {
	return h.db.UpdateRunStatus(res.RunID, res.Status)
}

func (h *HistoryRecorder) Step(_ context.Context, runID string, s StepResult) error {
	return h.db.AddStep(&db.StepRecord{
		RunID:      runID,
		Index:      s.Index,
		Name:       s.Name,
		Status:     s.Status,
		DurationMs: s.Duration.Milliseconds(),
		Error:      s.Error,
	})
}

func (h *HistoryRecorder) Finish(_ context.Context, res *Result) error {
	finished := res.FinishedAt
	shot := res.Screenshot
	if shot == "" {
		shot = res.FailureScreenshot
	}
	return h.db.FinishRun(&db.Run{
		ID:             res.RunID,
		Status:         res.Status,
		FailedStep:     res.FailedStep,
		FailureKind:    res.FailureKind,
		Error:          res.Error,
		ScreenshotPath: shot,
		LogPath:        res.LogPath,
		FinishedAt:     &finished,
		DurationMs:     res.Duration.Milliseconds(),
	})
}
