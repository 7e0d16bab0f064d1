package discipline

// Observer receives engine events for metrics. Events are emitted after
// commit on the caller's goroutine, so implementations must not block.
type Observer interface {
	// TardinessProcessed is called once per check-in with its outcome:
	// "on_time", "gap" or the applied rule type.
	TardinessProcessed(outcome string)
	ConversionOccurred(t TardinessType)
	// EscalationEvaluated reports "created", "deduplicated" or "gap".
	EscalationEvaluated(trigger TriggerType, outcome string, action ActionType)
	RecordDecided(status RecordStatus)
	IncidentRaised(metric Metric)
	OperationFailed(op string)
}

// Escalation outcomes passed to Observer.EscalationEvaluated.
const (
	OutcomeCreated      = "created"
	OutcomeDeduplicated = "deduplicated"
	OutcomeGap          = "gap"
	OutcomeOnTime       = "on_time"
)

// NopObserver discards every event.
type NopObserver struct{}

func (NopObserver) TardinessProcessed(string) {}
func (NopObserver) ConversionOccurred(TardinessType) {}
func (NopObserver) EscalationEvaluated(TriggerType, string, ActionType) {}
func (NopObserver) RecordDecided(RecordStatus) {}
func (NopObserver) IncidentRaised(Metric) {}
func (NopObserver) OperationFailed(string) {}
