package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nhle/mail-manager/internal/mailbox"
	"github.com/nhle/mail-manager/internal/model"
	"github.com/nhle/mail-manager/internal/store"
)

// Classifier turns a raw message into a classified one. It never fails;
// degradation happens inside the implementation.
type Classifier interface {
	Classify(ctx context.Context, email model.IncomingEmail) model.ClassifiedEmail
}

// Request carries per-run caller input. The zero value runs the
// configured profile unchanged.
type Request struct {
	// Days is the caller-requested look-back window. The effective
	// window is the larger of this and the selected profile's Days,
	// so a request can widen the pull but never shrink it.
	Days int

	// ForceFirst selects the first-sync profile even when completed
	// syncs already exist.
	ForceFirst bool
}

// Orchestrator drives one sync run end to end: pick a profile, open a
// session, connect, list, deduplicate, then fetch-classify-persist in
// batches. Every run finishes its session row as completed or failed,
// and always disconnects the gateway.
type Orchestrator struct {
	gateway    mailbox.Gateway
	store      store.Store
	index      *Index
	classifier Classifier
	cfg        model.SyncConfig
	logger     *slog.Logger

	// now supplies the clock for the since-window; tests pin it.
	now func() time.Time
}

// NewOrchestrator wires a sync orchestrator.
func NewOrchestrator(
	gateway mailbox.Gateway,
	s store.Store,
	classifier Classifier,
	cfg model.SyncConfig,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		gateway:    gateway,
		store:      s,
		index:      NewIndex(s, logger),
		classifier: classifier,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

// Run starts a sync run and returns its event stream. The stream closes
// after exactly one terminal event.
func (o *Orchestrator) Run(ctx context.Context, req Request) <-chan Event {
	events := make(chan Event)
	go func() {
		defer close(events)
		o.run(ctx, req, events)
	}()
	return events
}

func (o *Orchestrator) run(ctx context.Context, req Request, events chan<- Event) {
	first, err := o.store.IsFirstSync(ctx)
	if err != nil {
		o.send(ctx, events, Event{
			Kind:    EventFailed,
			Message: "could not determine sync type",
			Err:     err,
		})
		return
	}

	syncType := model.SyncTypeIncremental
	profile := o.cfg.IncrementalSync
	if first || req.ForceFirst {
		syncType = model.SyncTypeFirst
		profile = o.cfg.FirstSync
	}

	days := profile.Days
	if req.Days > days {
		days = req.Days
	}

	sessionID, err := o.store.CreateSyncSession(ctx, syncType, days)
	if err != nil {
		o.send(ctx, events, Event{
			Kind:    EventFailed,
			Message: "could not open sync session",
			Err:     err,
		})
		return
	}

	synced := 0
	processed := 0

	// Session finalization must survive a canceled run context.
	finalCtx := context.WithoutCancel(ctx)

	fail := func(msg string, cause error) {
		o.logger.Error("sync failed",
			"session_id", sessionID, "synced", synced, "err", cause)
		if err := o.store.FailSyncSession(
			finalCtx, sessionID, synced, processed, cause.Error(),
		); err != nil {
			o.logger.Error("could not record sync failure",
				"session_id", sessionID, "err", err)
		}
		o.send(ctx, events, Event{
			Kind:    EventFailed,
			Message: msg,
			Count:   synced,
			Err:     cause,
		})
	}

	if !o.send(ctx, events, Event{
		Kind:    EventConnecting,
		Message: "connecting to mailbox",
	}) {
		fail("sync canceled", ctx.Err())
		return
	}

	if err := o.gateway.Connect(ctx); err != nil {
		fail("could not connect to mailbox", err)
		return
	}
	defer func() {
		if err := o.gateway.Disconnect(); err != nil {
			o.logger.Warn("disconnect failed", "err", err)
		}
	}()

	since := o.now().AddDate(0, 0, -days)
	ids, err := o.gateway.ListIdentifiers(ctx, since)
	if err != nil {
		fail("could not list messages", err)
		return
	}

	unseen, err := o.index.FilterUnseen(ctx, ids)
	if err != nil {
		fail("sync canceled", err)
		return
	}

	// The gateway lists oldest first; reverse so the newest messages
	// survive the cap.
	reverse(unseen)
	if max := o.cfg.MaxEmailsPerSync; max > 0 && len(unseen) > max {
		o.logger.Info("capping sync run",
			"unseen", len(unseen), "cap", max)
		unseen = unseen[:max]
	}

	total := len(unseen)
	if !o.send(ctx, events, Event{
		Kind:    EventFetching,
		Message: fmt.Sprintf("fetching %d new messages", total),
		Total:   total,
	}) {
		fail("sync canceled", ctx.Err())
		return
	}

	batchSize := profile.BatchSize
	if batchSize <= 0 {
		batchSize = 1
	}
	delay := time.Duration(profile.DelayBetweenBatchesMs) * time.Millisecond

	for start := 0; start < total; start += batchSize {
		end := start + batchSize
		if end > total {
			end = total
		}
		batch := unseen[start:end]

		if err := ctx.Err(); err != nil {
			fail("sync canceled", err)
			return
		}

		emails, err := o.gateway.FetchByIdentifiers(ctx, batch)
		if err != nil {
			// One lost batch does not abort the run; the messages
			// stay unseen and a later sync picks them up.
			o.logger.Warn("batch fetch failed, skipping",
				"session_id", sessionID,
				"batch_start", start, "batch_size", len(batch), "err", err)
			emails = nil
		}

		for _, email := range emails {
			classified := o.classifier.Classify(ctx, email)

			if err := o.store.UpsertEmail(ctx, classified); err != nil {
				o.logger.Warn("could not persist email",
					"email_id", email.ID, "err", err)
				continue
			}

			synced++
			if classified.Processed {
				processed++
			}

			if !o.send(ctx, events, Event{
				Kind:    EventProgress,
				Message: fmt.Sprintf("synced %d/%d", synced, total),
				Total:   total,
				Count:   synced,
				Subject: email.Subject,
			}) {
				fail("sync canceled", ctx.Err())
				return
			}
		}

		if end < total && delay > 0 {
			select {
			case <-ctx.Done():
				fail("sync canceled", ctx.Err())
				return
			case <-time.After(delay):
			}
		}
	}

	if err := o.store.CompleteSyncSession(finalCtx, sessionID, synced, processed); err != nil {
		fail("could not finalize sync session", err)
		return
	}

	o.logger.Info("sync completed",
		"session_id", sessionID, "type", syncType,
		"synced", synced, "processed", processed)

	o.send(ctx, events, Event{
		Kind:    EventCompleted,
		Message: fmt.Sprintf("synced %d messages", synced),
		Total:   total,
		Count:   synced,
	})
}

// send delivers an event, blocking until the consumer receives it. It
// returns false when the run context is canceled first; terminal events
// are still attempted so a live consumer sees the outcome.
func (o *Orchestrator) send(ctx context.Context, events chan<- Event, ev Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		if ev.Terminal() {
			select {
			case events <- ev:
			default:
			}
		}
		return false
	}
}

func reverse(s []string) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
