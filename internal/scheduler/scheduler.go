package scheduler

import (
	"context"
	"log/slog"
	"time"

	"pagesum/internal/domain"

	"github.com/robfig/cron/v3"
)

const (
	HourlyDigestSpec      = "0 * * * *"
	Timezone              = "UTC"
	TimezoneOffsetSeconds = 0
	checkHourPagesTimeout = 15 * time.Minute
)

// PageStore lists watched pages due at a UTC hour.
type PageStore interface {
	GetHourWatchedPages(ctx context.Context, hourUTC int64) ([]domain.WatchedPage, error)
}

// DigestSender delivers one user's digest.
type DigestSender interface {
	SendDigest(ctx context.Context, userID int64, pages []domain.WatchedPage) error
}

type Scheduler struct {
	ctx    context.Context
	cron   *cron.Cron
	store  PageStore
	sender DigestSender
	now    func() time.Time
	log    *slog.Logger
}

func New(ctx context.Context, store PageStore, sender DigestSender, log *slog.Logger) *Scheduler {
	c := cron.New(cron.WithLocation(time.FixedZone(Timezone, TimezoneOffsetSeconds)))

	return &Scheduler{
		ctx:    ctx,
		cron:   c,
		store:  store,
		sender: sender,
		now:    time.Now,
		log:    log,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(HourlyDigestSpec, s.checkHourPages); err != nil {
		return err
	}

	s.cron.Start()

	return nil
}

// Stop stops the cron and waits for a running digest to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) checkHourPages() {
	ctx, cancel := context.WithTimeout(s.ctx, checkHourPagesTimeout)
	defer cancel()

	s.RunHour(ctx, int64(s.now().UTC().Hour()))
}

// RunHour sends the digest to every user whose digest hour is hourUTC.
func (s *Scheduler) RunHour(ctx context.Context, hourUTC int64) {
	select {
	case <-ctx.Done():
		s.log.InfoContext(ctx, "Scheduler context is done",
			"error", ctx.Err())
		return
	default:
	}

	pages, err := s.store.GetHourWatchedPages(ctx, hourUTC)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to get hour watched pages",
			"error", err,
			"hourUTC", hourUTC)
		return
	}

	userIDs, userPages := groupByUser(pages)

	s.log.InfoContext(ctx, "Sending hour digests",
		"hourUTC", hourUTC,
		"userCount", len(userIDs),
		"pageCount", len(pages))

	for _, userID := range userIDs {
		if ctx.Err() != nil {
			s.log.InfoContext(ctx, "Scheduler context is done",
				"error", ctx.Err())
			return
		}

		if err = s.sender.SendDigest(ctx, userID, userPages[userID]); err != nil {
			s.log.ErrorContext(ctx, "Failed to send user digest",
				"error", err,
				"hourUTC", hourUTC,
				"userID", userID,
				"pageIDs", pageIDs(userPages[userID]))
		}
	}
}

// groupByUser groups pages by user, keeping users in first-seen order.
func groupByUser(pages []domain.WatchedPage) ([]int64, map[int64][]domain.WatchedPage) {
	var userIDs []int64
	userPages := make(map[int64][]domain.WatchedPage)

	for _, p := range pages {
		if _, ok := userPages[p.UserID]; !ok {
			userIDs = append(userIDs, p.UserID)
		}

		userPages[p.UserID] = append(userPages[p.UserID], p)
	}

	return userIDs, userPages
}

func pageIDs(pages []domain.WatchedPage) []int64 {
	ids := make([]int64, 0, len(pages))
	for _, p := range pages {
		ids = append(ids, p.ID)
	}

	return ids
}
