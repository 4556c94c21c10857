package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/assistant-chat/internal/assistant"
	"github.com/ashureev/assistant-chat/internal/domain"
)

var errBoom = errors.New("boom")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func noSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

type appendCall struct {
	ThreadID string
	Role     domain.Role
	Content  string
}

// fakeThreads is a scriptable assistant.Client that records every call.
type fakeThreads struct {
	mu sync.Mutex

	created    int
	appends    []appendCall
	starts     int
	polls      int
	listCalls  int
	nextThread int

	createErr error
	// appendErr decides the result of each AppendMessage call.
	appendErr func(call appendCall) error
	startErr  error
	// statuses is consumed one entry per GetRun; the last entry repeats.
	startStatus domain.RunStatus
	statuses    []domain.RunStatus
	pollErrs    []error
	lastError   *assistant.RunError
	messages    []assistant.Message
	listErr     error
}

func newFakeThreads() *fakeThreads {
	return &fakeThreads{startStatus: domain.RunStatusQueued, statuses: []domain.RunStatus{domain.RunStatusCompleted}}
}

func (f *fakeThreads) CreateThread(context.Context) (*assistant.Thread, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created++
	f.nextThread++
	return &assistant.Thread{ID: fmt.Sprintf("thread_new_%d", f.nextThread)}, nil
}

func (f *fakeThreads) AppendMessage(_ context.Context, threadID string, role domain.Role, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	call := appendCall{ThreadID: threadID, Role: role, Content: content}
	if f.appendErr != nil {
		if err := f.appendErr(call); err != nil {
			return err
		}
	}
	f.appends = append(f.appends, call)
	return nil
}

func (f *fakeThreads) StartRun(context.Context, string, assistant.RunParams) (*assistant.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	if f.startErr != nil {
		return nil, f.startErr
	}
	return &assistant.Run{ID: "run_1", Status: f.startStatus}, nil
}

func (f *fakeThreads) GetRun(context.Context, string, string) (*assistant.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.polls
	f.polls++
	if i < len(f.pollErrs) && f.pollErrs[i] != nil {
		return nil, f.pollErrs[i]
	}
	status := f.statuses[len(f.statuses)-1]
	if i < len(f.statuses) {
		status = f.statuses[i]
	}
	run := &assistant.Run{ID: "run_1", Status: status}
	if status == domain.RunStatusFailed {
		run.LastError = f.lastError
	}
	return run, nil
}

func (f *fakeThreads) ListMessages(context.Context, string) ([]assistant.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.messages, nil
}

func (f *fakeThreads) appended() []appendCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]appendCall(nil), f.appends...)
}

// fakeStore is an in-memory Store with injectable failures.
type fakeStore struct {
	mu       sync.Mutex
	sessions map[string]domain.UserSession
	entries  []domain.ConversationEntry

	getErr    error
	upsertErr error
	appendErr error
	listErr   error

	upserts   int
	appendsN  int
	listCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{sessions: make(map[string]domain.UserSession)}
}

func (s *fakeStore) GetSession(_ context.Context, identity string) (*domain.UserSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	session, ok := s.sessions[identity]
	if !ok {
		return nil, nil
	}
	return &session, nil
}

func (s *fakeStore) UpsertSession(_ context.Context, session *domain.UserSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts++
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.sessions[session.Identity] = *session
	return nil
}

func (s *fakeStore) AppendEntry(_ context.Context, entry *domain.ConversationEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendsN++
	if s.appendErr != nil {
		return s.appendErr
	}
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *fakeStore) ListEntries(_ context.Context, identity string) ([]domain.ConversationEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []domain.ConversationEntry
	for _, e := range s.entries {
		if e.Identity == identity {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *fakeStore) session(identity string) (domain.UserSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[identity]
	return session, ok
}

func (s *fakeStore) all() []domain.ConversationEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ConversationEntry(nil), s.entries...)
}
