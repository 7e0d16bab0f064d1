/*
Package notify delivers disciplinary notifications outside the engine.

PURPOSE:
  The engine hands a Notifier each record whose rule has notifications
  enabled, after the transaction that created it has committed. This
  package turns those calls into messages and ships them to a Sender
  without ever blocking or failing the check-in path.

COMPONENTS:
  Message:    Wire form of a notification (JSON)
  Sender:     Delivers one message (LogSender, RedisSender)
  Dispatcher: discipline.Notifier backed by a buffered queue and a worker

DELIVERY:
  Fire-and-forget. A full queue drops the message with a WARN log; a
  failing Sender is logged at ERROR and the message is discarded.

SEE ALSO:
  - discipline/notifier.go: The Notifier interface
  - redis.go: Redis pub/sub sender
*/
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/warp/discipline-engine/discipline"
)

// Message is the payload published for one disciplinary record.
type Message struct {
	EmployeeID       string     `json:"employee_id"`
	RecordID         string     `json:"record_id"`
	RuleID           string     `json:"rule_id"`
	RuleName         string     `json:"rule_name"`
	ActionType       string     `json:"action_type"`
	TriggerType      string     `json:"trigger_type"`
	TriggerCount     int        `json:"trigger_count"`
	Status           string     `json:"status"`
	RequiresApproval bool       `json:"requires_approval"`
	SuspensionDays   *int       `json:"suspension_days,omitempty"`
	EffectiveDate    *time.Time `json:"effective_date,omitempty"`
	Reason           string     `json:"reason"`
	AppliedDate      time.Time  `json:"applied_date"`
}

// NewMessage builds the wire message for record created from rule.
func NewMessage(employeeID discipline.EmployeeID, rule discipline.DisciplinaryActionRule, rec discipline.DisciplinaryRecord) Message {
	return Message{
		EmployeeID:       string(employeeID),
		RecordID:         string(rec.ID),
		RuleID:           string(rule.ID),
		RuleName:         rule.Name,
		ActionType:       string(rec.ActionType),
		TriggerType:      string(rec.TriggerType),
		TriggerCount:     rec.TriggerCount,
		Status:           string(rec.Status),
		RequiresApproval: rule.RequiresApproval,
		SuspensionDays:   rec.SuspensionDays,
		EffectiveDate:    rec.EffectiveDate,
		Reason:           rec.Reason,
		AppliedDate:      rec.AppliedDate,
	}
}

// Encode returns the JSON form of m.
func (m Message) Encode() ([]byte, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode notification: %w", err)
	}
	return b, nil
}

// Sender delivers a single message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// =============================================================================
// LOG SENDER
// =============================================================================

// LogSender writes messages to a structured logger. Used when no broker
// is configured.
type LogSender struct {
	Logger *slog.Logger
}

func (s LogSender) Send(ctx context.Context, msg Message) error {
	s.Logger.InfoContext(ctx, "disciplinary notification",
		slog.String("employee_id", msg.EmployeeID),
		slog.String("record_id", msg.RecordID),
		slog.String("action_type", msg.ActionType),
		slog.String("status", msg.Status),
		slog.Int("trigger_count", msg.TriggerCount),
	)
	return nil
}
