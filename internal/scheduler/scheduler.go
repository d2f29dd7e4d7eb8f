package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/example/assistbot/internal/database"
	"github.com/example/assistbot/pkg/models"
)

// MisfireGrace is how late a job may fire after its instant. Past the
// grace window the reminder is dropped, never run late.
const MisfireGrace = 60 * time.Second

// Notifier delivers a fired reminder to its chat.
type Notifier interface {
	SendReminder(chatID int64, text string) error
}

// Scheduler is the durable reminder service: rows in Persistence plus
// one-shot gocron jobs keyed by reminder id. It runs on a UTC clock;
// timezone conversion is a display concern.
type Scheduler struct {
	scheduler *gocron.Scheduler
	repo      *database.ReminderRepository
	notifier  Notifier
	now       func() time.Time
}

// New creates a scheduler instance.
func New(repo *database.ReminderRepository, notifier Notifier) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		repo:      repo,
		notifier:  notifier,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Start begins running scheduled jobs in the background.
func (s *Scheduler) Start() {
	s.scheduler.StartAsync()
}

// Stop terminates all scheduled jobs.
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// Add stores a reminder and registers its one-shot job. The instant is
// normalized to UTC before it reaches the row.
func (s *Scheduler) Add(ctx context.Context, userID, chatID int64, text string, instant time.Time) (int64, error) {
	instant = instant.UTC()
	if !instant.After(s.now()) {
		return 0, fmt.Errorf("reminder time %s is in the past", instant.Format(time.RFC3339))
	}

	id, err := s.repo.Create(ctx, &models.Reminder{
		UserID:      userID,
		ChatID:      chatID,
		Text:        text,
		TriggerTime: instant,
	})
	if err != nil {
		return 0, err
	}
	s.register(id, chatID, text, instant)
	return id, nil
}

// List returns the chat's pending reminders ordered by trigger time.
func (s *Scheduler) List(ctx context.Context, chatID int64) ([]models.Reminder, error) {
	return s.repo.ListByChat(ctx, chatID)
}

// Count returns the number of pending reminders for a chat.
func (s *Scheduler) Count(ctx context.Context, chatID int64) (int, error) {
	return s.repo.CountByChat(ctx, chatID)
}

// Delete cancels a reminder: row first, then the registered job.
func (s *Scheduler) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	_ = s.scheduler.RemoveByTag(jobTag(id))
	return nil
}

// Restore re-registers jobs for future reminders and purges expired
// rows. Called once at startup, before Start; an expired reminder must
// not fire retroactively.
func (s *Scheduler) Restore(ctx context.Context) error {
	reminders, err := s.repo.GetAll(ctx)
	if err != nil {
		return err
	}
	restored, purged := 0, 0
	for _, rem := range reminders {
		if rem.TriggerTime.After(s.now()) {
			s.register(rem.ID, rem.ChatID, rem.Text, rem.TriggerTime)
			restored++
			continue
		}
		if err := s.repo.Delete(ctx, rem.ID); err != nil {
			log.Printf("scheduler: failed to purge reminder %d: %v", rem.ID, err)
			continue
		}
		purged++
	}
	log.Printf("scheduler: restored %d reminders, purged %d expired", restored, purged)
	return nil
}

func (s *Scheduler) register(id, chatID int64, text string, instant time.Time) {
	_, err := s.scheduler.Every(1).Day().StartAt(instant).LimitRunsTo(1).
		Tag(jobTag(id)).
		Do(func() { s.fire(id, chatID, text, instant) })
	if err != nil {
		log.Printf("scheduler: failed to register reminder %d: %v", id, err)
	}
}

// fire delivers one reminder and deletes its row. Errors are logged,
// never fatal: a notification failure must not take the service down.
func (s *Scheduler) fire(id, chatID int64, text string, instant time.Time) {
	defer func() {
		_ = s.scheduler.RemoveByTag(jobTag(id))
	}()

	if s.now().Sub(instant) > MisfireGrace {
		log.Printf("scheduler: dropping reminder %d, %s past its instant", id, s.now().Sub(instant))
		if err := s.repo.Delete(context.Background(), id); err != nil {
			log.Printf("scheduler: failed to delete misfired reminder %d: %v", id, err)
		}
		return
	}

	if err := s.notifier.SendReminder(chatID, fmt.Sprintf("⏰ REMINDER:\n\n%s", text)); err != nil {
		log.Printf("scheduler: failed to deliver reminder %d: %v", id, err)
	}
	if err := s.repo.Delete(context.Background(), id); err != nil {
		log.Printf("scheduler: failed to delete fired reminder %d: %v", id, err)
	}
}

// FormatLocal renders a trigger instant in the user's zone for lists.
func FormatLocal(instant time.Time, timezone string) string {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		loc = time.UTC
	}
	return instant.In(loc).Format("02.01 15:04")
}

func jobTag(id int64) string {
	return fmt.Sprintf("reminder-%d", id)
}
