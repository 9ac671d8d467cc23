package testutil

import "github.com/roach88/ledger/internal/ledger"

// OperationEvent builds the parameters of one operation event.
func OperationEvent(operationID, eventType, processType string) ledger.Parameters {
	return ledger.NewParameters().
		Set(ledger.EventID, operationID).
		Set(ledger.ProcessID, operationID).
		Set(ledger.EventType, eventType).
		Set(ledger.ProcessType, processType).
		Set(ledger.EventDateTime, "2024-01-02T03:04:05.000").
		Set(ledger.Outcome, "OK").
		Set(ledger.OutcomeDetail, eventType+".OK").
		Set(ledger.OutcomeMessage, eventType+" done").
		Set(ledger.AgentID, `{"Name":"test"}`)
}

// LifecycleEvent builds the parameters of one lifecycle event for object
// objectID written by operation operationID.
func LifecycleEvent(operationID, objectID, eventType, processType string) ledger.Parameters {
	return ledger.NewParameters().
		Set(ledger.EventID, operationID).
		Set(ledger.ProcessID, operationID).
		Set(ledger.ObjectID, objectID).
		Set(ledger.EventType, eventType).
		Set(ledger.ProcessType, processType).
		Set(ledger.EventDateTime, "2024-01-02T03:04:05.000").
		Set(ledger.Outcome, "OK").
		Set(ledger.OutcomeDetail, eventType+".OK").
		Set(ledger.OutcomeMessage, eventType+" done").
		Set(ledger.AgentID, `{"Name":"test"}`)
}
