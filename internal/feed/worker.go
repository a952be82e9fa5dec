package feed

import (
	"context"
	"log/slog"

	"totpattend/internal/queue"
)

// Run appends every attendance event from msgs to f until msgs closes or ctx ends.
// It returns the number of events stored.
func Run(ctx context.Context, msgs <-chan queue.Message, f Feed, logger *slog.Logger) int {
	if logger == nil {
		logger = slog.Default()
	}
	n := 0
	for {
		select {
		case <-ctx.Done():
			return n
		case msg, ok := <-msgs:
			if !ok {
				return n
			}
			if msg.Type != queue.TypeAttendanceRecorded {
				logger.Debug("skipping message", "type", msg.Type)
				continue
			}
			evt, err := queue.DecodeAttendance(msg)
			if err != nil {
				logger.Warn("bad attendance event", "err", err)
				continue
			}
			if err := f.Push(ctx, evt); err != nil {
				logger.Error("feed push failed", "meeting_id", evt.MeetingID, "user_id", evt.UserID, "err", err)
				continue
			}
			n++
			logger.Debug("feed updated", "meeting_id", evt.MeetingID, "user_id", evt.UserID, "status", evt.Status)
		}
	}
}
