// Package scheduler runs the minute tick that hands out coffee.
// Ticks fire on weekdays against a fixed UTC calendar; each user's trigger
// time is evaluated in that user's own timezone.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/mymmrac/telego"
	"github.com/robfig/cron/v3"

	"github.com/syntaxa/coffeechest/internal/database"
	"github.com/syntaxa/coffeechest/internal/database/models"
	"github.com/syntaxa/coffeechest/internal/messenger"
)

// Weekdays only, every minute, evaluated in UTC.
const tickSpec = "* * * * 1-5"

// primaryWinChance is the base probability of receiving any reward on a
// triggered minute.
const primaryWinChance = 0.5

// haikuRetries is how many extra generation attempts follow a failure.
const haikuRetries = 1

// Deliverer sends one composed reward message.
type Deliverer interface {
	Send(ctx context.Context, chatID int64, text string, opts ...func(*telego.SendMessageParams)) error
}

// Generator produces the optional haiku text.
type Generator interface {
	GenerateWithRetry(ctx context.Context, prompt string, retries int) (string, error)
}

// Config carries the reward texts and generation prompt.
type Config struct {
	WinMessage    string
	CookieMessage string
	HaikuPrompt   string
}

// Scheduler evaluates every user once per minute and delivers rewards.
type Scheduler struct {
	cron      *cron.Cron
	users     database.UserRepository
	gateway   Deliverer
	generator Generator
	cfg       Config

	// Injection points for tests. now defaults to time.Now, roll to a
	// shared uniform [0,1) source.
	now  func() time.Time
	roll func() float64
}

// New creates a Scheduler. generator may be nil, in which case haiku text is
// always omitted.
func New(users database.UserRepository, gateway Deliverer, generator Generator, cfg Config) *Scheduler {
	return &Scheduler{
		cron:      cron.New(cron.WithLocation(time.UTC)),
		users:     users,
		gateway:   gateway,
		generator: generator,
		cfg:       cfg,
		now:       time.Now,
		roll:      rand.Float64,
	}
}

// Start registers the minute tick and starts the timer.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(tickSpec, func() {
		s.Tick(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to register tick: %w", err)
	}
	s.cron.Start()
	log.Println("Reward scheduler started (weekdays, every minute)")
	return nil
}

// Stop halts the timer and waits for a running tick to finish.
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	log.Println("Reward scheduler stopped")
}

// Tick runs one evaluation pass across all users. A single user's failure
// never aborts the rest of the pass.
func (s *Scheduler) Tick(ctx context.Context) {
	users, err := s.users.All(ctx)
	if err != nil {
		log.Printf("[Tick] Failed to load users: %v", err)
		sentry.CaptureException(err)
		return
	}

	for i := range users {
		if err := s.processUser(ctx, &users[i]); err != nil {
			log.Printf("[Tick] Error processing user %d: %v", users[i].ChatID, err)
			sentry.CaptureException(err)
		}
	}
}

// processUser evaluates the trigger condition for one user and, on a win,
// composes and delivers the reward.
func (s *Scheduler) processUser(ctx context.Context, user *models.User) error {
	loc, err := time.LoadLocation(user.TimeZone)
	if err != nil {
		return fmt.Errorf("bad timezone %q: %w", user.TimeZone, err)
	}
	hour, minute, err := models.ParseNotificationTime(user.NotificationTime)
	if err != nil {
		return fmt.Errorf("bad notification time: %w", err)
	}

	// Exact-minute match in the user's local time. Missed minutes are
	// skipped, not backfilled.
	local := s.now().In(loc)
	if local.Hour() != hour || local.Minute() != minute {
		return nil
	}

	won := s.roll() < primaryWinChance
	log.Printf("[Tick] User %s (%d) rolled: %t", user.Username, user.ChatID, won)
	if !won {
		return nil
	}

	message := s.composeReward(ctx, user)

	err = s.gateway.Send(ctx, user.ChatID, message)
	if errors.Is(err, messenger.ErrRecipientBlocked) {
		if delErr := s.users.Delete(ctx, user.ChatID); delErr != nil {
			return fmt.Errorf("failed to unregister blocked user: %w", delErr)
		}
		log.Printf("[Tick] User %s (%d) blocked the bot and was unregistered", user.Username, user.ChatID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("delivery failed: %w", err)
	}
	return nil
}

// composeReward builds the final message: base win text, an independent
// cookie roll when enabled, and the haiku unless opted out. Generation
// failure omits the haiku without blocking delivery.
func (s *Scheduler) composeReward(ctx context.Context, user *models.User) string {
	var b strings.Builder
	b.WriteString(s.cfg.WinMessage)

	if user.Cookie.Enabled && s.roll() < float64(user.Cookie.Probability)/100 {
		b.WriteString("\n\n")
		b.WriteString(s.cfg.CookieMessage)
		log.Printf("[Tick] User %d also won a cookie", user.ChatID)
	}

	if user.HaikuEnabled() && s.generator != nil {
		haiku, err := s.generator.GenerateWithRetry(ctx, s.cfg.HaikuPrompt, haikuRetries)
		if err != nil {
			log.Printf("[Tick] Haiku generation failed for user %d, omitting: %v", user.ChatID, err)
		} else {
			b.WriteString("\n\n")
			b.WriteString(haiku)
		}
	}

	return b.String()
}
