package receiver

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type Options struct {
	Location    *time.Location
	Now         func() time.Time
	Days        int           // length of the date picker
	ReminderTTL time.Duration // lifetime of "use the buttons" notices
}

func (o Options) withDefaults() Options {
	if o.Location == nil {
		o.Location = time.Local
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Days <= 0 {
		o.Days = 7
	}
	if o.ReminderTTL <= 0 {
		o.ReminderTTL = 5 * time.Second
	}
	return o
}

// ---------- Session store (in-memory, safe for concurrent use) ----------

type Store struct {
	mu sync.RWMutex
	m  map[int64]*Session

	ctx       context.Context
	bot       BotAPI
	newWizard WizardFactory
	opts      Options
	logger    zerolog.Logger
	wg        sync.WaitGroup
}

// NewStore keeps one session per user. Sessions stop when ctx is done.
func NewStore(ctx context.Context, bot BotAPI, newWizard WizardFactory, opts Options, logger zerolog.Logger) *Store {
	return &Store{
		m:         make(map[int64]*Session),
		ctx:       ctx,
		bot:       bot,
		newWizard: newWizard,
		opts:      opts.withDefaults(),
		logger:    logger.With().Str("component", "session_store").Logger(),
	}
}

// Get returns the user's session, starting it on first contact.
func (s *Store) Get(userID, chatID int64) *Session {
	s.mu.RLock()
	sess, ok := s.m[userID]
	s.mu.RUnlock()
	if ok {
		return sess
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.m[userID]; ok {
		return sess
	}
	sess = newSession(s.ctx, userID, chatID, s.bot, s.newWizard, s.opts, s.logger)
	s.m[userID] = sess
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		sess.run()
	}()
	s.logger.Debug().Int64("user_id", userID).Msg("session started")
	return sess
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}

// Wait blocks until every session goroutine has returned.
func (s *Store) Wait() {
	s.wg.Wait()
}
