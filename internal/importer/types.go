// Package importer converts raw delimited-text rows into typed entity
// records. One mapper is registered per importable entity kind; the mapping
// contract is shared so the job worker can drive any kind the same way.
package importer

import "time"

// Kind identifies an importable entity kind.
type Kind string

const (
	KindCustomer      Kind = "customer"
	KindDevice        Kind = "device"
	KindInspection    Kind = "inspection"
	KindCommunication Kind = "communication"

	// KindArchive is a ZIP of per-kind CSV files, split into child jobs.
	KindArchive Kind = "archive"
)

// IssueLevel grades an import issue.
type IssueLevel string

const (
	LevelWarning IssueLevel = "warning"
	LevelError   IssueLevel = "error"
)

// Issue records one problem with one row or field. Issues accumulate for
// the lifetime of a job and its report; they are appended, never mutated.
type Issue struct {
	// RowNumber is 1-based among data rows, header excluded.
	RowNumber     int        `json:"rowNumber"`
	Level         IssueLevel `json:"level"`
	Field         string     `json:"field,omitempty"`
	Message       string     `json:"message"`
	OriginalValue string     `json:"originalValue,omitempty"`
}

// Record is a typed create/update request produced by a row mapper.
// NaturalKey identifies the existing entity a re-import should update
// instead of duplicating.
type Record interface {
	RecordKind() Kind
	NaturalKey() string
}

// CustomerRecord is an upsert request for a customer.
type CustomerRecord struct {
	Name       string
	Street     string
	City       string
	PostalCode string
	Country    string
	Phone      string
	Email      string
}

func (CustomerRecord) RecordKind() Kind { return KindCustomer }

// NaturalKey matches an existing customer by name + postal code.
func (r CustomerRecord) NaturalKey() string {
	return foldKey(r.Name, r.PostalCode)
}

// DeviceRecord is an upsert request for a field device.
type DeviceRecord struct {
	SerialNumber string
	Model        string
	CustomerName string
	InstalledOn  time.Time
	Location     string
}

func (DeviceRecord) RecordKind() Kind { return KindDevice }

func (r DeviceRecord) NaturalKey() string {
	return foldKey(r.SerialNumber)
}

// InspectionRecord is an upsert request for one inspection of a device.
type InspectionRecord struct {
	DeviceSerial string
	InspectedOn  time.Time
	Result       string
	Inspector    string
	Notes        string
}

func (InspectionRecord) RecordKind() Kind { return KindInspection }

func (r InspectionRecord) NaturalKey() string {
	return foldKey(r.DeviceSerial, r.InspectedOn.Format("2006-01-02"))
}

// CommunicationRecord is an upsert request for one customer contact entry.
type CommunicationRecord struct {
	CustomerName string
	OccurredOn   time.Time
	Channel      string
	Summary      string
}

func (CommunicationRecord) RecordKind() Kind { return KindCommunication }

func (r CommunicationRecord) NaturalKey() string {
	return foldKey(r.CustomerName, r.OccurredOn.Format("2006-01-02"), r.Channel)
}
