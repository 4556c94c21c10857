package chat

import (
	"context"
	"log/slog"
	"slices"

	"github.com/ashureev/assistant-chat/internal/domain"
)

// MessageAppender is the part of the thread client replay needs.
type MessageAppender interface {
	AppendMessage(ctx context.Context, threadID string, role domain.Role, content string) error
}

// ReplayResult reports how a replay went.
type ReplayResult struct {
	Appended int
	Failed   int
}

// ReplayMessages flattens persisted entries into the ordered thread messages
// that restore them: oldest entry first, user before assistant.
func ReplayMessages(entries []domain.ConversationEntry) []domain.Message {
	ordered := slices.Clone(entries)
	slices.SortStableFunc(ordered, func(a, b domain.ConversationEntry) int {
		return a.Timestamp.Compare(b.Timestamp)
	})

	msgs := make([]domain.Message, 0, 2*len(ordered))
	for _, e := range ordered {
		msgs = append(msgs, e.Messages()...)
	}
	return msgs
}

// Replay appends the history to a freshly created thread. It is best-effort:
// a failed append is logged and counted, and replay continues. It stops early
// only when ctx is done.
func Replay(ctx context.Context, threads MessageAppender, threadID string, entries []domain.ConversationEntry, logger *slog.Logger) (ReplayResult, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var res ReplayResult
	for i, msg := range ReplayMessages(entries) {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := threads.AppendMessage(ctx, threadID, msg.Role, msg.Content); err != nil {
			res.Failed++
			logger.Warn("History replay append failed",
				"thread_id", threadID,
				"index", i,
				"role", msg.Role,
				"error", err)
			continue
		}
		res.Appended++
	}
	return res, nil
}
