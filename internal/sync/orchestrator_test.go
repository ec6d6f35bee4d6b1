package sync_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"testing"
	"time"

	"github.com/nhle/mail-manager/internal/model"
	"github.com/nhle/mail-manager/internal/store"
	"github.com/nhle/mail-manager/internal/sync"
	"github.com/nhle/mail-manager/tests/testutil"
)

// fakeGateway serves scripted identifiers and synthesizes message
// content on fetch. Batch fetches can be failed by call number.
type fakeGateway struct {
	ids        []string
	connectErr error
	listErr    error

	// failFetchCall fails the n-th FetchByIdentifiers call (1-based).
	failFetchCall int

	fetchCalls   int
	fetched      [][]string
	listedSince  time.Time
	connected    bool
	disconnected bool
}

func (g *fakeGateway) Connect(_ context.Context) error {
	if g.connectErr != nil {
		return g.connectErr
	}
	g.connected = true
	return nil
}

func (g *fakeGateway) Disconnect() error {
	g.disconnected = true
	return nil
}

func (g *fakeGateway) ListIdentifiers(
	_ context.Context, since time.Time,
) ([]string, error) {
	g.listedSince = since
	if g.listErr != nil {
		return nil, g.listErr
	}
	return g.ids, nil
}

func (g *fakeGateway) FetchHeaders(
	_ context.Context, _ time.Time, _ int,
) ([]model.EmailHeader, error) {
	return nil, nil
}

func (g *fakeGateway) FetchByIdentifiers(
	_ context.Context, ids []string,
) ([]model.IncomingEmail, error) {
	g.fetchCalls++
	if g.fetchCalls == g.failFetchCall {
		return nil, errors.New("fetch timed out")
	}
	g.fetched = append(g.fetched, ids)

	emails := make([]model.IncomingEmail, 0, len(ids))
	for _, id := range ids {
		emails = append(emails, model.IncomingEmail{
			ID:          id,
			Subject:     "message " + id,
			SenderEmail: "sender@example.edu",
			SenderName:  "sender",
			Date:        time.Date(2026, time.August, 20, 9, 0, 0, 0, time.UTC),
			TextBody:    "body " + id,
		})
	}
	return emails, nil
}

// passClassifier marks everything processed without model calls.
type passClassifier struct{}

func (passClassifier) Classify(
	_ context.Context, email model.IncomingEmail,
) model.ClassifiedEmail {
	return model.ClassifiedEmail{
		IncomingEmail: email,
		Priority:      model.PriorityNormal,
		ProcessedBy:   model.ProcessorRuleBased,
		PrivacyLevel:  model.PrivacyNormal,
		Processed:     true,
	}
}

func serverIDs(n int) []string {
	ids := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		ids = append(ids, strconv.Itoa(i))
	}
	return ids
}

func testSyncConfig() model.SyncConfig {
	return model.SyncConfig{
		FirstSync:        model.SyncProfile{Days: 7, BatchSize: 10},
		IncrementalSync:  model.SyncProfile{Days: 3, BatchSize: 20},
		MaxEmailsPerSync: 200,
	}
}

func drain(t *testing.T, events <-chan sync.Event) []sync.Event {
	t.Helper()

	var collected []sync.Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return collected
			}
			collected = append(collected, ev)
		case <-timeout:
			t.Fatalf("event stream did not close; got %d events", len(collected))
		}
	}
}

func lastSession(t *testing.T, s store.Store) model.SyncSession {
	t.Helper()

	sessions, err := s.GetSyncSessions(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetSyncSessions() error: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("len(sessions) = %d, want 1", len(sessions))
	}
	return sessions[0]
}

func TestRunFirstSync(t *testing.T) {
	s := testutil.NewTestStore(t)
	gateway := &fakeGateway{ids: serverIDs(25)}

	o := sync.NewOrchestrator(
		gateway, s, passClassifier{}, testSyncConfig(),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)

	events := drain(t, o.Run(context.Background(), sync.Request{}))

	// connecting, fetching, 25 progress, completed
	if len(events) != 28 {
		t.Fatalf("len(events) = %d, want 28", len(events))
	}
	if events[0].Kind != sync.EventConnecting {
		t.Errorf("events[0].Kind = %q, want connecting", events[0].Kind)
	}
	if events[1].Kind != sync.EventFetching || events[1].Total != 25 {
		t.Errorf("events[1] = %+v, want fetching with Total=25", events[1])
	}
	for i := 2; i < 27; i++ {
		if events[i].Kind != sync.EventProgress {
			t.Fatalf("events[%d].Kind = %q, want progress", i, events[i].Kind)
		}
		if events[i].Count != i-1 {
			t.Errorf("events[%d].Count = %d, want %d", i, events[i].Count, i-1)
		}
	}
	final := events[27]
	if final.Kind != sync.EventCompleted || final.Count != 25 {
		t.Errorf("final event = %+v, want completed with Count=25", final)
	}

	// First sync uses batch size 10: 25 messages in 3 batches.
	if gateway.fetchCalls != 3 {
		t.Errorf("fetchCalls = %d, want 3", gateway.fetchCalls)
	}
	// Newest messages first: the first batch holds the highest IDs.
	if got := gateway.fetched[0][0]; got != "25" {
		t.Errorf("first fetched id = %q, want 25", got)
	}
	if !gateway.disconnected {
		t.Error("gateway was not disconnected")
	}

	sess := lastSession(t, s)
	if sess.Status != model.SyncStatusCompleted {
		t.Errorf("session status = %q, want completed", sess.Status)
	}
	if sess.Type != model.SyncTypeFirst {
		t.Errorf("session type = %q, want first_sync", sess.Type)
	}
	if sess.EmailsSynced != 25 || sess.EmailsProcessed != 25 {
		t.Errorf("session counters = (%d, %d), want (25, 25)",
			sess.EmailsSynced, sess.EmailsProcessed)
	}

	stats, err := s.GetStats(context.Background())
	if err != nil {
		t.Fatalf("GetStats() error: %v", err)
	}
	if stats.Total != 25 {
		t.Errorf("stored emails = %d, want 25", stats.Total)
	}
}

func assertWindow(t *testing.T, since time.Time, days int) {
	t.Helper()

	want := time.Now().AddDate(0, 0, -days)
	if d := since.Sub(want); d < -time.Minute || d > time.Minute {
		t.Errorf("list window starts at %v, want about %d days back", since, days)
	}
}

func TestRunHonorsRequestedWindow(t *testing.T) {
	t.Run("wider request widens the window", func(t *testing.T) {
		s := testutil.NewTestStore(t)
		gateway := &fakeGateway{ids: serverIDs(3)}

		o := sync.NewOrchestrator(
			gateway, s, passClassifier{}, testSyncConfig(),
			slog.New(slog.NewTextHandler(io.Discard, nil)),
		)

		drain(t, o.Run(context.Background(), sync.Request{Days: 30}))

		assertWindow(t, gateway.listedSince, 30)
		if got := lastSession(t, s).Days; got != 30 {
			t.Errorf("session days = %d, want 30", got)
		}
	})

	t.Run("profile window is the floor", func(t *testing.T) {
		s := testutil.NewTestStore(t)
		gateway := &fakeGateway{ids: serverIDs(3)}

		o := sync.NewOrchestrator(
			gateway, s, passClassifier{}, testSyncConfig(),
			slog.New(slog.NewTextHandler(io.Discard, nil)),
		)

		// First-sync profile covers 7 days; a narrower request
		// must not shrink it.
		drain(t, o.Run(context.Background(), sync.Request{Days: 2}))

		assertWindow(t, gateway.listedSince, 7)
		if got := lastSession(t, s).Days; got != 7 {
			t.Errorf("session days = %d, want 7", got)
		}
	})
}

func TestRunForcesFirstProfile(t *testing.T) {
	s := testutil.NewTestStore(t)
	gateway := &fakeGateway{ids: serverIDs(5)}

	o := sync.NewOrchestrator(
		gateway, s, passClassifier{}, testSyncConfig(),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)

	drain(t, o.Run(context.Background(), sync.Request{}))

	gateway.ids = serverIDs(30)
	drain(t, o.Run(context.Background(), sync.Request{ForceFirst: true}))

	sess := lastSession(t, s)
	if sess.Type != model.SyncTypeFirst {
		t.Errorf("forced session type = %q, want first_sync", sess.Type)
	}
	// The first-sync profile covers 7 days and fetches the 25 unseen
	// messages in batches of 10; the incremental profile would have
	// used 2 batches of 20.
	assertWindow(t, gateway.listedSince, 7)
	if gateway.fetchCalls != 4 {
		t.Errorf("fetchCalls = %d, want 4 (1 initial + 3 forced)", gateway.fetchCalls)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	s := testutil.NewTestStore(t)
	gateway := &fakeGateway{ids: serverIDs(5)}

	o := sync.NewOrchestrator(
		gateway, s, passClassifier{}, testSyncConfig(),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)

	drain(t, o.Run(context.Background(), sync.Request{}))
	second := drain(t, o.Run(context.Background(), sync.Request{}))

	// connecting, fetching(0), completed: everything already seen.
	if len(second) != 3 {
		t.Fatalf("len(second) = %d, want 3", len(second))
	}
	if second[1].Total != 0 {
		t.Errorf("second fetching Total = %d, want 0", second[1].Total)
	}
	final := second[2]
	if final.Kind != sync.EventCompleted || final.Count != 0 {
		t.Errorf("final event = %+v, want completed with Count=0", final)
	}

	sess := lastSession(t, s)
	if sess.Type != model.SyncTypeIncremental {
		t.Errorf("second session type = %q, want incremental_sync", sess.Type)
	}
	if sess.EmailsSynced != 0 {
		t.Errorf("second session synced = %d, want 0", sess.EmailsSynced)
	}
}

func TestRunSkipsFailedBatch(t *testing.T) {
	s := testutil.NewTestStore(t)
	gateway := &fakeGateway{ids: serverIDs(25), failFetchCall: 2}

	o := sync.NewOrchestrator(
		gateway, s, passClassifier{}, testSyncConfig(),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)

	events := drain(t, o.Run(context.Background(), sync.Request{}))

	final := events[len(events)-1]
	if final.Kind != sync.EventCompleted {
		t.Fatalf("final event = %+v, want completed", final)
	}
	if final.Count != 15 {
		t.Errorf("final Count = %d, want 15 (one batch of 10 lost)", final.Count)
	}

	sess := lastSession(t, s)
	if sess.Status != model.SyncStatusCompleted {
		t.Errorf("session status = %q, want completed", sess.Status)
	}
	if sess.EmailsSynced != 15 {
		t.Errorf("session synced = %d, want 15", sess.EmailsSynced)
	}

	// The lost batch stays unseen and is picked up by the next run.
	gateway.failFetchCall = 0
	second := drain(t, o.Run(context.Background(), sync.Request{}))
	if second[len(second)-1].Count != 10 {
		t.Errorf("second run Count = %d, want 10", second[len(second)-1].Count)
	}
}

func TestRunConnectFailureIsTerminal(t *testing.T) {
	s := testutil.NewTestStore(t)
	gateway := &fakeGateway{
		ids:        serverIDs(5),
		connectErr: errors.New("dial tcp: connection refused"),
	}

	o := sync.NewOrchestrator(
		gateway, s, passClassifier{}, testSyncConfig(),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)

	events := drain(t, o.Run(context.Background(), sync.Request{}))

	if len(events) != 2 {
		t.Fatalf("len(events) = %d, want 2 (connecting, failed)", len(events))
	}
	final := events[1]
	if final.Kind != sync.EventFailed {
		t.Fatalf("final event = %+v, want failed", final)
	}
	if final.Err == nil {
		t.Error("failed event has nil Err")
	}
	if gateway.fetchCalls != 0 {
		t.Errorf("fetchCalls = %d, want 0", gateway.fetchCalls)
	}

	sess := lastSession(t, s)
	if sess.Status != model.SyncStatusFailed {
		t.Errorf("session status = %q, want failed", sess.Status)
	}
	if sess.ErrorMessage == "" {
		t.Error("session error message is empty")
	}
}

func TestRunCapsAtNewestMessages(t *testing.T) {
	s := testutil.NewTestStore(t)
	gateway := &fakeGateway{ids: serverIDs(25)}

	cfg := testSyncConfig()
	cfg.MaxEmailsPerSync = 10

	o := sync.NewOrchestrator(
		gateway, s, passClassifier{}, cfg,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)

	events := drain(t, o.Run(context.Background(), sync.Request{}))

	final := events[len(events)-1]
	if final.Kind != sync.EventCompleted || final.Count != 10 {
		t.Fatalf("final event = %+v, want completed with Count=10", final)
	}

	// The cap keeps the newest messages (highest server IDs).
	for i := 25; i > 15; i-- {
		exists, err := s.EmailExists(context.Background(), strconv.Itoa(i))
		if err != nil {
			t.Fatalf("EmailExists() error: %v", err)
		}
		if !exists {
			t.Errorf("newest message %d was not synced", i)
		}
	}
	exists, err := s.EmailExists(context.Background(), "15")
	if err != nil {
		t.Fatalf("EmailExists() error: %v", err)
	}
	if exists {
		t.Error("message 15 synced despite the cap")
	}
}

func TestRunCancellation(t *testing.T) {
	s := testutil.NewTestStore(t)
	gateway := &fakeGateway{ids: serverIDs(25)}

	o := sync.NewOrchestrator(
		gateway, s, passClassifier{}, testSyncConfig(),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := o.Run(ctx, sync.Request{})

	var collected []sync.Event
	for ev := range events {
		collected = append(collected, ev)
		if ev.Kind == sync.EventProgress && ev.Count == 5 {
			cancel()
		}
	}

	final := collected[len(collected)-1]
	if final.Kind != sync.EventFailed {
		t.Fatalf("final event = %+v, want failed after cancel", final)
	}

	sess := lastSession(t, s)
	if sess.Status != model.SyncStatusFailed {
		t.Errorf("session status = %q, want failed", sess.Status)
	}
	if !gateway.disconnected {
		t.Error("gateway was not disconnected after cancel")
	}
}

func TestRunEmitsExactlyOneTerminalEvent(t *testing.T) {
	tests := []struct {
		name    string
		gateway *fakeGateway
	}{
		{"success", &fakeGateway{ids: serverIDs(3)}},
		{"connect failure", &fakeGateway{connectErr: errors.New("refused")}},
		{"list failure", &fakeGateway{listErr: errors.New("broken pipe")}},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			s := testutil.NewTestStore(t)
			o := sync.NewOrchestrator(
				tc.gateway, s, passClassifier{}, testSyncConfig(),
				slog.New(slog.NewTextHandler(io.Discard, nil)),
			)

			events := drain(t, o.Run(context.Background(), sync.Request{}))

			terminals := 0
			for i, ev := range events {
				if ev.Terminal() {
					terminals++
					if i != len(events)-1 {
						t.Errorf("terminal event at index %d of %d", i, len(events))
					}
				}
			}
			if terminals != 1 {
				t.Errorf("terminal events = %d, want exactly 1", terminals)
			}
		})
	}
}

func TestRunListFailureFailsSession(t *testing.T) {
	s := testutil.NewTestStore(t)
	gateway := &fakeGateway{listErr: errors.New("mailbox gone")}

	o := sync.NewOrchestrator(
		gateway, s, passClassifier{}, testSyncConfig(),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)

	events := drain(t, o.Run(context.Background(), sync.Request{}))

	final := events[len(events)-1]
	if final.Kind != sync.EventFailed {
		t.Fatalf("final event = %+v, want failed", final)
	}
	if !gateway.disconnected {
		t.Error("gateway was not disconnected after list failure")
	}

	sess := lastSession(t, s)
	if sess.Status != model.SyncStatusFailed {
		t.Errorf("session status = %q, want failed", sess.Status)
	}
}

func TestProgressMessages(t *testing.T) {
	s := testutil.NewTestStore(t)
	gateway := &fakeGateway{ids: serverIDs(2)}

	o := sync.NewOrchestrator(
		gateway, s, passClassifier{}, testSyncConfig(),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)

	events := drain(t, o.Run(context.Background(), sync.Request{}))

	if len(events) != 5 {
		t.Fatalf("len(events) = %d, want 5", len(events))
	}
	first := events[2]
	if first.Subject != "message 2" {
		t.Errorf("first progress Subject = %q, want %q", first.Subject, "message 2")
	}
	if first.Message != fmt.Sprintf("synced %d/%d", 1, 2) {
		t.Errorf("first progress Message = %q", first.Message)
	}
}
