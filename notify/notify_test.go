package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/discipline-engine/discipline"
	"github.com/warp/discipline-engine/notify"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type recordingSender struct {
	mu   sync.Mutex
	msgs []notify.Message
	err  error
}

func (s *recordingSender) Send(_ context.Context, msg notify.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
	return s.err
}

func (s *recordingSender) sent() []notify.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]notify.Message(nil), s.msgs...)
}

type fakePublisher struct {
	channel string
	payload []byte
	err     error
}

func (p *fakePublisher) Publish(_ context.Context, channel string, payload []byte) error {
	p.channel = channel
	p.payload = payload
	return p.err
}

func suspension() (discipline.DisciplinaryActionRule, discipline.DisciplinaryRecord) {
	applied := time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)
	rule := discipline.DisciplinaryActionRule{
		ID: "ft-suspension", Name: "Suspension", TriggerType: discipline.TriggerFormalTardies,
		TriggerCount: 8, ActionType: discipline.ActionSuspension, SuspensionDays: discipline.IntPtr(2),
		RequiresApproval: true, NotificationEnabled: true, IsActive: true,
	}
	rec := discipline.DisciplinaryRecord{
		ID: "rec-1", EmployeeID: "emp-1", RuleID: rule.ID, ActionType: rule.ActionType,
		TriggerType: rule.TriggerType, TriggerCount: 9, AppliedDate: applied,
		SuspensionDays: rule.SuspensionDays, Reason: "9 formal tardies", Status: discipline.StatusPending,
	}
	return rule, rec
}

func TestRedisSender_PublishesJSON(t *testing.T) {
	pub := &fakePublisher{}
	sender := notify.NewRedisSender(pub, "")
	rule, rec := suspension()

	require.NoError(t, sender.Send(context.Background(), notify.NewMessage("emp-1", rule, rec)))
	assert.Equal(t, notify.DefaultChannel, pub.channel)

	var got map[string]any
	require.NoError(t, json.Unmarshal(pub.payload, &got))
	assert.Equal(t, "emp-1", got["employee_id"])
	assert.Equal(t, "SUSPENSION", got["action_type"])
	assert.Equal(t, "PENDING", got["status"])
	assert.Equal(t, true, got["requires_approval"])
	assert.EqualValues(t, 2, got["suspension_days"])
	assert.NotContains(t, got, "effective_date")

	pub.err = errors.New("connection refused")
	err := sender.Send(context.Background(), notify.NewMessage("emp-1", rule, rec))
	assert.ErrorContains(t, err, "connection refused")
}

func TestDispatcher_DeliversAfterStart(t *testing.T) {
	sender := &recordingSender{}
	d := notify.NewDispatcher(sender, quiet, 8)
	d.Start()
	rule, rec := suspension()

	require.NoError(t, d.Notify(context.Background(), "emp-1", rule, rec))
	d.Stop()

	msgs := sender.sent()
	require.Len(t, msgs, 1)
	assert.Equal(t, "rec-1", msgs[0].RecordID)
	assert.Equal(t, "Suspension", msgs[0].RuleName)
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	// GIVEN: A one-slot queue with no worker draining it
	// WHEN: Two notifications arrive
	// THEN: The second is dropped without error; Stop drains the first

	sender := &recordingSender{}
	d := notify.NewDispatcher(sender, quiet, 1)
	var dropped []string
	d.OnDrop = func(m notify.Message) { dropped = append(dropped, m.RecordID) }
	rule, rec := suspension()

	require.NoError(t, d.Notify(context.Background(), "emp-1", rule, rec))
	rec.ID = "rec-2"
	require.NoError(t, d.Notify(context.Background(), "emp-1", rule, rec))

	assert.Equal(t, []string{"rec-2"}, dropped)
	assert.Equal(t, 1, d.Pending())

	d.Start()
	d.Stop()
	assert.Len(t, sender.sent(), 1)

	rec.ID = "rec-3"
	require.NoError(t, d.Notify(context.Background(), "emp-1", rule, rec))
	assert.Equal(t, []string{"rec-2", "rec-3"}, dropped)
}

func TestDispatcher_StopWithoutStartDropsQueued(t *testing.T) {
	sender := &recordingSender{}
	d := notify.NewDispatcher(sender, quiet, 4)
	var dropped []string
	d.OnDrop = func(m notify.Message) { dropped = append(dropped, m.RecordID) }
	rule, rec := suspension()

	require.NoError(t, d.Notify(context.Background(), "emp-1", rule, rec))
	d.Stop()

	assert.Equal(t, []string{"rec-1"}, dropped)
	assert.Zero(t, d.Pending())
	assert.Empty(t, sender.sent())
}

func TestDispatcher_NotifyRacingStopLosesNothing(t *testing.T) {
	// GIVEN: A running dispatcher with room for every message
	// WHEN: Notifications race with Stop
	// THEN: Each message is either delivered or reported as dropped

	const total = 200
	sender := &recordingSender{}
	d := notify.NewDispatcher(sender, quiet, total)
	var dropped atomic.Int32
	d.OnDrop = func(notify.Message) { dropped.Add(1) }
	d.Start()
	rule, rec := suspension()

	var wg sync.WaitGroup
	for i := 0; i < total; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = d.Notify(context.Background(), "emp-1", rule, rec)
		}()
	}
	d.Stop()
	wg.Wait()

	assert.Equal(t, total, len(sender.sent())+int(dropped.Load()))
	assert.Zero(t, d.Pending())
}

func TestDispatcher_SenderFailureIsSwallowed(t *testing.T) {
	sender := &recordingSender{err: errors.New("boom")}
	d := notify.NewDispatcher(sender, quiet, 4)
	d.Start()
	rule, rec := suspension()

	assert.NoError(t, d.Notify(context.Background(), "emp-1", rule, rec))
	d.Stop()
	assert.Len(t, sender.sent(), 1)
}

func TestLogSender(t *testing.T) {
	rule, rec := suspension()
	assert.NoError(t, notify.LogSender{Logger: quiet}.Send(context.Background(), notify.NewMessage("emp-1", rule, rec)))
}
