package ledger

import (
	"fmt"
	"sort"
)

// Field is a closed tag for one ledger header/event field.
type Field uint8

const (
	EventID Field = iota + 1
	ParentEventID
	EventType
	EventDateTime
	ProcessID
	ProcessType
	Outcome
	OutcomeDetail
	OutcomeMessage
	AgentID
	AgentApp
	AgentAppSession
	RequestID
	AgentExternal
	RightsStatement
	ObjectID
	ObjectRequestID
	ObjectIncomeID
	DetailData
	MasterData
)

// wireNames is the single table used for storage, index bodies and query
// construction.
var wireNames = map[Field]string{
	EventID:         "evId",
	ParentEventID:   "evParentId",
	EventType:       "evType",
	EventDateTime:   "evDateTime",
	ProcessID:       "evIdProc",
	ProcessType:     "evTypeProc",
	Outcome:         "outcome",
	OutcomeDetail:   "outDetail",
	OutcomeMessage:  "outMessg",
	AgentID:         "agId",
	AgentApp:        "agIdApp",
	AgentAppSession: "evIdAppSession",
	RequestID:       "evIdReq",
	AgentExternal:   "agIdExt",
	RightsStatement: "rightsStatementIdentifier",
	ObjectID:        "obId",
	ObjectRequestID: "obIdReq",
	ObjectIncomeID:  "obIdIn",
	DetailData:      "evDetData",
	MasterData:      "masterData",
}

var fieldsByWire = func() map[string]Field {
	m := make(map[string]Field, len(wireNames))
	for f, name := range wireNames {
		m[name] = f
	}
	return m
}()

// Document keys that are not header fields.
const (
	KeyID                = "_id"
	KeyTenant            = "_tenant"
	KeyVersion           = "_v"
	KeyLastPersistedDate = "_lastPersistedDate"
	KeyEvents            = "events"
)

// String returns the wire name.
func (f Field) String() string {
	if name, ok := wireNames[f]; ok {
		return name
	}
	return fmt.Sprintf("field(%d)", uint8(f))
}

// ParseField maps a wire name back to its Field.
func ParseField(wire string) (Field, bool) {
	f, ok := fieldsByWire[wire]
	return f, ok
}

// Schema is the closed set of fields a ledger kind accepts.
type Schema map[Field]bool

func schemaOf(fields ...Field) Schema {
	s := make(Schema, len(fields))
	for _, f := range fields {
		s[f] = true
	}
	return s
}

// WireNames lists the schema's wire names in sorted order.
func (s Schema) WireNames() []string {
	names := make([]string, 0, len(s))
	for f := range s {
		names = append(names, f.String())
	}
	sort.Strings(names)
	return names
}

var operationSchema = schemaOf(
	EventID, ParentEventID, EventType, EventDateTime, ProcessID, ProcessType,
	Outcome, OutcomeDetail, OutcomeMessage, AgentID, AgentApp, AgentAppSession,
	RequestID, AgentExternal, RightsStatement, ObjectID, ObjectRequestID,
	ObjectIncomeID, DetailData, MasterData,
)

var lifecycleSchema = schemaOf(
	EventID, ParentEventID, EventType, EventDateTime, ProcessID, ProcessType,
	Outcome, OutcomeDetail, OutcomeMessage, AgentID, ObjectID, DetailData,
)

// Fields dropped from every stored event. The header keeps them.
var alwaysStripped = []Field{AgentApp, AgentAppSession}

// Fields dropped from a stored event when empty.
var strippedWhenEmpty = []Field{RightsStatement, AgentExternal, ObjectID, RequestID, ObjectRequestID, ObjectIncomeID}

// Fields whose string value carries JSON that the search index expects as
// a structured object.
var jsonStringFields = []Field{DetailData, RightsStatement}

// Process types tag who opened a staging row or wrote an event.
const (
	ProcessIngest               = "INGEST"
	ProcessUpdate               = "UPDATE"
	ProcessTraceability         = "TRACEABILITY"
	ProcessMasterData           = "MASTERDATA"
	ProcessMassUpdate           = "MASS_UPDATE"
	ProcessBulkUpdate           = "BULK_UPDATE"
	ProcessIngestTest           = "INGEST_TEST"
	ProcessAudit                = "AUDIT"
	ProcessDataConsistencyAudit = "DATA_CONSISTENCY_AUDIT"
	ProcessCheck                = "CHECK"
	ProcessPreservation         = "PRESERVATION"
	ProcessElimination          = "ELIMINATION"
	ProcessExternalLogbook      = "EXTERNAL_LOGBOOK"
	ProcessExportDIP            = "EXPORT_DIP"
	ProcessTransfer             = "TRANSFER"
	ProcessDataMigration        = "DATA_MIGRATION"
	ProcessStorageBackup        = "STORAGE_BACKUP"
	ProcessProbativeValue       = "PROBATIVE_VALUE"
)
