package discipline

import "context"

// Notifier delivers disciplinary notifications. It is invoked after the
// triggering transaction commits, only for rules with NotificationEnabled.
// Implementations must not block the caller; a returned error is logged
// and never rolls anything back.
type Notifier interface {
	Notify(ctx context.Context, employeeID EmployeeID, rule DisciplinaryActionRule, record DisciplinaryRecord) error
}

// NopNotifier drops every notification.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, EmployeeID, DisciplinaryActionRule, DisciplinaryRecord) error {
	return nil
}
