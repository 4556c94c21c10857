package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ashureev/assistant-chat/internal/assistant"
	"github.com/ashureev/assistant-chat/internal/domain"
	"github.com/ashureev/assistant-chat/internal/identity"
)

const (
	defaultRunTimeout     = 60 * time.Second
	defaultPersistTimeout = 10 * time.Second

	// DefaultCooldownMessage is returned when a turn is refused by the cooldown.
	DefaultCooldownMessage = "You've already had a conversation recently. Please come back later."
	// DefaultFallbackMessage is returned when a run ends without a usable reply.
	DefaultFallbackMessage = "Sorry, assistant could not complete the request."

	maxReasonLength = 200
)

// Store is the part of the conversation store the service needs.
type Store interface {
	GetSession(ctx context.Context, identity string) (*domain.UserSession, error)
	UpsertSession(ctx context.Context, session *domain.UserSession) error
	AppendEntry(ctx context.Context, entry *domain.ConversationEntry) error
	ListEntries(ctx context.Context, identity string) ([]domain.ConversationEntry, error)
}

// Options configures a Service. Zero values take the defaults, except
// Policy.Cooldown where zero disables the cooldown.
type Options struct {
	Policy          Policy
	RunParams       assistant.RunParams
	RunTimeout      time.Duration
	PersistTimeout  time.Duration
	CooldownMessage string
	FallbackMessage string
	IncludeHistory  bool
	Now             func() time.Time
}

// Request is one inbound chat turn.
type Request struct {
	Email   string
	Message string
	// IncludeHistory overrides Options.IncludeHistory when set.
	IncludeHistory *bool
	RequestID      string
}

// Reply is the outcome of a turn.
type Reply struct {
	Message  string
	History  []domain.ConversationEntry
	Cooldown bool
	RetryAt  time.Time
	ThreadID string
	Status   domain.RunStatus
	// Completed is true when Message came from the assistant rather than
	// being a degraded substitute.
	Completed bool
}

// Service runs conversation turns.
type Service struct {
	store   Store
	threads assistant.Client
	driver  *RunDriver
	opts    Options
	locks   *keyedMutex
	logger  *slog.Logger
}

// NewService creates a service. A nil driver polls threads with defaults.
func NewService(store Store, threads assistant.Client, driver *RunDriver, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if driver == nil {
		driver = NewRunDriver(threads, RunDriverConfig{}, logger)
	}
	if opts.Policy.Mode == "" {
		opts.Policy.Mode = CooldownBlock
	}
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = defaultRunTimeout
	}
	if opts.PersistTimeout <= 0 {
		opts.PersistTimeout = defaultPersistTimeout
	}
	if opts.CooldownMessage == "" {
		opts.CooldownMessage = DefaultCooldownMessage
	}
	if opts.FallbackMessage == "" {
		opts.FallbackMessage = DefaultFallbackMessage
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		store:   store,
		threads: threads,
		driver:  driver,
		opts:    opts,
		locks:   newKeyedMutex(),
		logger:  logger,
	}
}

// Handle runs one turn. Errors are returned for invalid requests and for
// failures up to and including starting the run; once a run exists the caller
// always gets a reply, degraded if necessary.
func (s *Service) Handle(ctx context.Context, req Request) (*Reply, error) {
	email := identity.Normalize(req.Email)
	if email == "" || strings.TrimSpace(req.Message) == "" {
		turnsTotal.WithLabelValues(outcomeInvalid).Inc()
		return nil, fmt.Errorf("%w: email and message are required", ErrInvalidRequest)
	}

	logger := s.logger.With("email", email, "request_id", req.RequestID)
	includeHistory := s.opts.IncludeHistory
	if req.IncludeHistory != nil {
		includeHistory = *req.IncludeHistory
	}

	unlock := s.locks.Lock(email)
	defer unlock()

	now := s.opts.Now()

	session, err := s.store.GetSession(ctx, email)
	if err != nil {
		turnsTotal.WithLabelValues(outcomeError).Inc()
		return nil, storeErr("get session", err)
	}

	decision := s.opts.Policy.Decide(session, now)
	if decision.WithinCooldown {
		turnsTotal.WithLabelValues(outcomeCooldown).Inc()
		logger.Info("Chat turn refused by cooldown", "retry_at", decision.RetryAt)
		reply := &Reply{
			Message:  s.opts.CooldownMessage,
			Cooldown: true,
			RetryAt:  decision.RetryAt,
			ThreadID: decision.ThreadID,
		}
		if includeHistory {
			reply.History = s.history(ctx, logger, email)
		}
		return reply, nil
	}

	logger.Info("Chat turn started",
		"message_length", len(req.Message),
		"reuse_thread", !decision.MustReset,
	)

	threadID, err := s.submit(ctx, logger, email, decision, req.Message)
	if err != nil {
		turnsTotal.WithLabelValues(outcomeError).Inc()
		return nil, err
	}
	logger = logger.With("thread_id", threadID)

	// The run is a billed remote side effect: finish and record it even if
	// the caller goes away.
	detached := context.WithoutCancel(ctx)

	runCtx, cancelRun := context.WithTimeout(detached, s.opts.RunTimeout)
	st := s.driver.Drive(runCtx, threadID, s.opts.RunParams)
	cancelRun()

	runPollAttempts.Observe(float64(st.Attempts))
	runStatusTotal.WithLabelValues(string(st.Status)).Inc()

	// Nothing ran remotely; fail the turn without starting the cooldown.
	if !st.Started() {
		turnsTotal.WithLabelValues(outcomeError).Inc()
		return nil, fmt.Errorf("start run: %w", st.Err)
	}

	tailCtx, cancelTail := context.WithTimeout(detached, s.opts.PersistTimeout)
	defer cancelTail()

	message, completed := s.finalMessage(tailCtx, logger, threadID, st)
	s.persist(tailCtx, logger, session, &domain.ConversationEntry{
		Identity:         email,
		ThreadID:         threadID,
		UserMessage:      req.Message,
		AssistantMessage: message,
		Timestamp:        now,
	})

	if completed {
		turnsTotal.WithLabelValues(outcomeCompleted).Inc()
	} else {
		turnsTotal.WithLabelValues(outcomeDegraded).Inc()
	}
	logger.Info("Chat turn finished",
		"run_id", st.ID,
		"status", st.Status,
		"poll_attempts", st.Attempts,
		"poll_errors", st.PollErrors,
		"completed", completed,
	)

	reply := &Reply{
		Message:   message,
		ThreadID:  threadID,
		Status:    st.Status,
		Completed: completed,
	}
	if includeHistory {
		reply.History = s.history(tailCtx, logger, email)
	}
	return reply, nil
}

// History returns the ordered conversation log for an identity.
func (s *Service) History(ctx context.Context, email string) ([]domain.ConversationEntry, error) {
	email = identity.Normalize(email)
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrInvalidRequest)
	}
	entries, err := s.store.ListEntries(ctx, email)
	if err != nil {
		return nil, storeErr("list entries", err)
	}
	return entries, nil
}

// submit makes sure a usable thread exists and appends the user's message to
// it. A reused thread that the provider no longer knows is replaced once.
func (s *Service) submit(ctx context.Context, logger *slog.Logger, email string, decision Decision, message string) (string, error) {
	threadID := decision.ThreadID
	fresh := false
	if decision.MustReset || threadID == "" {
		var err error
		if threadID, err = s.newThread(ctx, logger, email); err != nil {
			return "", err
		}
		fresh = true
	}

	err := s.threads.AppendMessage(ctx, threadID, domain.RoleUser, message)
	if err != nil && !fresh && errors.Is(err, assistant.ErrThreadNotFound) {
		logger.Warn("Stored thread no longer exists, starting a new one", "thread_id", threadID)
		if threadID, err = s.newThread(ctx, logger, email); err != nil {
			return "", err
		}
		err = s.threads.AppendMessage(ctx, threadID, domain.RoleUser, message)
	}
	if err != nil {
		return "", fmt.Errorf("append user message: %w", err)
	}
	return threadID, nil
}

// newThread creates a thread and replays the identity's log into it.
func (s *Service) newThread(ctx context.Context, logger *slog.Logger, email string) (string, error) {
	entries, err := s.store.ListEntries(ctx, email)
	if err != nil {
		return "", storeErr("list entries", err)
	}

	thread, err := s.threads.CreateThread(ctx)
	if err != nil {
		return "", fmt.Errorf("create thread: %w", err)
	}
	threadsCreatedTotal.Inc()
	logger.Info("Created assistant thread", "thread_id", thread.ID, "history_entries", len(entries))

	if len(entries) == 0 {
		return thread.ID, nil
	}

	res, err := Replay(ctx, s.threads, thread.ID, entries, logger)
	replayFailuresTotal.Add(float64(res.Failed))
	if err != nil {
		return "", fmt.Errorf("replay history: %w", err)
	}
	if res.Failed > 0 {
		logger.Warn("History replay incomplete",
			"thread_id", thread.ID,
			"appended", res.Appended,
			"failed", res.Failed)
	}
	return thread.ID, nil
}

// finalMessage turns the run outcome into the text shown to the user.
func (s *Service) finalMessage(ctx context.Context, logger *slog.Logger, threadID string, st RunState) (string, bool) {
	switch st.Status {
	case domain.RunStatusCompleted:
		msgs, err := s.threads.ListMessages(ctx, threadID)
		if err != nil {
			logger.Error("Failed to read assistant reply", "run_id", st.ID, "error", err)
			return s.opts.FallbackMessage, false
		}
		reply, ok := assistant.LatestAssistantMessage(msgs, st.ID)
		if !ok {
			logger.Warn("Completed run produced no assistant text", "run_id", st.ID)
			return s.opts.FallbackMessage, false
		}
		return reply.Content, true

	case domain.RunStatusFailed:
		if reason := failureReason(st.LastError); reason != "" {
			logger.Warn("Assistant run failed", "run_id", st.ID, "code", st.LastError.Code, "reason", reason)
			return s.opts.FallbackMessage + " Reason: " + reason, false
		}
		logger.Warn("Assistant run failed", "run_id", st.ID, "error", st.Err)
		return s.opts.FallbackMessage, false

	default:
		logger.Warn("Assistant run did not complete", "run_id", st.ID, "status", st.Status, "error", st.Err)
		return s.opts.FallbackMessage, false
	}
}

// persist records the turn. The session pointer is written before the log
// entry; if it cannot be written the entry is not attempted. Failures are
// reported to operators but never replace the reply.
func (s *Service) persist(ctx context.Context, logger *slog.Logger, prev *domain.UserSession, entry *domain.ConversationEntry) {
	session := &domain.UserSession{
		Identity:          entry.Identity,
		ThreadID:          entry.ThreadID,
		LastInteractionAt: entry.Timestamp,
	}
	if prev != nil {
		session.CreatedAt = prev.CreatedAt
	}

	if err := s.store.UpsertSession(ctx, session); err != nil {
		storeWriteFailuresTotal.WithLabelValues("upsert_session").Inc()
		logger.Error("Failed to save session, conversation entry not written",
			"error", storeErr("upsert session", err))
		return
	}

	if err := s.store.AppendEntry(ctx, entry); err != nil {
		storeWriteFailuresTotal.WithLabelValues("append_entry").Inc()
		logger.Error("Failed to append conversation entry", "error", storeErr("append entry", err))
	}
}

func (s *Service) history(ctx context.Context, logger *slog.Logger, email string) []domain.ConversationEntry {
	entries, err := s.store.ListEntries(ctx, email)
	if err != nil {
		logger.Warn("Failed to load conversation history", "error", err)
		return nil
	}
	return entries
}

func failureReason(e *assistant.RunError) string {
	if e == nil {
		return ""
	}
	reason := strings.TrimSpace(e.Message)
	if reason == "" {
		reason = e.Code
	}
	return truncate(reason, maxReasonLength)
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
