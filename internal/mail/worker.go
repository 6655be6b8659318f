package mail

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"campusattend/internal/queue"
)

// Sender delivers one code.
type Sender interface {
	Send(ctx context.Context, email, code string) error
}

// Worker drains queued OTP mail into a Sender.
type Worker struct {
	Queue    queue.Queue
	Sender   Sender
	Log      *zap.Logger
	OnResult func(err error)
}

// Run consumes until ctx is cancelled. Failed deliveries are logged and dropped;
// the challenge stays valid and the user can request a new code.
func (w *Worker) Run(ctx context.Context) error {
	log := w.Log
	if log == nil {
		log = zap.NewNop()
	}
	messages, err := w.Queue.Consume(ctx)
	if err != nil {
		return err
	}
	for msg := range messages {
		if msg.Type != JobType {
			continue
		}
		var job Job
		if err := json.Unmarshal(msg.Body, &job); err != nil {
			log.Warn("bad mail job", zap.Error(err))
			continue
		}
		err := w.Sender.Send(ctx, job.Email, job.Code)
		if err != nil {
			log.Warn("otp mail failed", zap.String("email", job.Email), zap.Error(err))
		} else {
			log.Info("otp mail sent", zap.String("email", job.Email))
		}
		if w.OnResult != nil {
			w.OnResult(err)
		}
	}
	return nil
}
