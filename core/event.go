package core

import (
	"time"

	"github.com/google/uuid"
)

// EventSource tells whether an event originated in this process or arrived
// from another instance through the messaging service
type EventSource string

const (
	EventSourceLocal  EventSource = "local"
	EventSourceRemote EventSource = "remote"
)

// Event type names. These are the wire identifiers of case events, changing
// one breaks compatibility with instances running an older build.
const (
	EventCaseOpened         = "CURRENT_CASE_OPENED"
	EventCaseClosed         = "CURRENT_CASE_CLOSED"
	EventCaseDetailsChanged = "CASE_DETAILS"
	EventDataSourceAdded    = "DATA_SOURCE_ADDED"
	EventContentTagAdded    = "CONTENT_TAG_ADDED"
	EventContentTagDeleted  = "CONTENT_TAG_DELETED"
	EventArtifactTagAdded   = "BLACKBOARD_ARTIFACT_TAG_ADDED"
	EventArtifactTagDeleted = "BLACKBOARD_ARTIFACT_TAG_DELETED"
	EventReportAdded        = "REPORT_ADDED"
	EventCommentChanged     = "CR_COMMENT_CHANGED"
)

// Event is a single case-state change
type Event interface {
	EventType() string
	Metadata() *EventHeader
}

// EventHeader carries the fields common to every case event.
// Embed it by value in concrete event types.
type EventHeader struct {
	ID         string    `msgpack:"id" json:"id"`
	Instance   string    `msgpack:"instance" json:"instance"`
	OccurredAt time.Time `msgpack:"occurred_at" json:"occurred_at"`

	source EventSource
}

// NewEventHeader creates a header stamped with a fresh id and the current time
func NewEventHeader(instance string) EventHeader {
	return EventHeader{
		ID:         uuid.NewString(),
		Instance:   instance,
		OccurredAt: time.Now().UTC(),
		source:     EventSourceLocal,
	}
}

// Metadata returns the header itself
func (h *EventHeader) Metadata() *EventHeader {
	return h
}

// Source returns where the event originated. Events that were never marked
// are treated as local.
func (h *EventHeader) Source() EventSource {
	if h.source == "" {
		return EventSourceLocal
	}
	return h.source
}

// MarkRemote flags the event as received from another instance
func (h *EventHeader) MarkRemote() {
	h.source = EventSourceRemote
}

// IsRemote reports whether the event arrived from another instance
func (h *EventHeader) IsRemote() bool {
	return h.source == EventSourceRemote
}

// CaseOpened is published when an instance opens a multi-user case
type CaseOpened struct {
	EventHeader `msgpack:",inline"`
	CaseName    string `msgpack:"case_name" json:"case_name"`
	CaseDir     string `msgpack:"case_dir" json:"case_dir"`
}

func (*CaseOpened) EventType() string { return EventCaseOpened }

// CaseClosed is published when an instance closes a multi-user case
type CaseClosed struct {
	EventHeader `msgpack:",inline"`
	CaseName    string `msgpack:"case_name" json:"case_name"`
}

func (*CaseClosed) EventType() string { return EventCaseClosed }

// CaseDetailsChanged reports an edit of a case property such as the display
// name or examiner
type CaseDetailsChanged struct {
	EventHeader `msgpack:",inline"`
	Field       string `msgpack:"field" json:"field"`
	OldValue    string `msgpack:"old_value" json:"old_value"`
	NewValue    string `msgpack:"new_value" json:"new_value"`
}

func (*CaseDetailsChanged) EventType() string { return EventCaseDetailsChanged }

// DataSourceAdded reports a new data source in the case
type DataSourceAdded struct {
	EventHeader  `msgpack:",inline"`
	DataSourceID int64  `msgpack:"data_source_id" json:"data_source_id"`
	Name         string `msgpack:"name" json:"name"`
}

func (*DataSourceAdded) EventType() string { return EventDataSourceAdded }

// ContentTagAdded reports a tag applied to a file
type ContentTagAdded struct {
	EventHeader `msgpack:",inline"`
	TagID       int64  `msgpack:"tag_id" json:"tag_id"`
	ContentID   int64  `msgpack:"content_id" json:"content_id"`
	TagName     string `msgpack:"tag_name" json:"tag_name"`
	Comment     string `msgpack:"comment" json:"comment"`
}

func (*ContentTagAdded) EventType() string { return EventContentTagAdded }

// ContentTagDeleted reports a tag removed from a file
type ContentTagDeleted struct {
	EventHeader `msgpack:",inline"`
	TagID       int64  `msgpack:"tag_id" json:"tag_id"`
	ContentID   int64  `msgpack:"content_id" json:"content_id"`
	TagName     string `msgpack:"tag_name" json:"tag_name"`
}

func (*ContentTagDeleted) EventType() string { return EventContentTagDeleted }

// ArtifactTagAdded reports a tag applied to a blackboard artifact
type ArtifactTagAdded struct {
	EventHeader `msgpack:",inline"`
	TagID       int64  `msgpack:"tag_id" json:"tag_id"`
	ArtifactID  int64  `msgpack:"artifact_id" json:"artifact_id"`
	TagName     string `msgpack:"tag_name" json:"tag_name"`
	Comment     string `msgpack:"comment" json:"comment"`
}

func (*ArtifactTagAdded) EventType() string { return EventArtifactTagAdded }

// ArtifactTagDeleted reports a tag removed from a blackboard artifact
type ArtifactTagDeleted struct {
	EventHeader `msgpack:",inline"`
	TagID       int64  `msgpack:"tag_id" json:"tag_id"`
	ArtifactID  int64  `msgpack:"artifact_id" json:"artifact_id"`
	TagName     string `msgpack:"tag_name" json:"tag_name"`
}

func (*ArtifactTagDeleted) EventType() string { return EventArtifactTagDeleted }

// ReportAdded reports a generated report registered with the case
type ReportAdded struct {
	EventHeader `msgpack:",inline"`
	ReportID    int64  `msgpack:"report_id" json:"report_id"`
	Path        string `msgpack:"path" json:"path"`
	Module      string `msgpack:"module" json:"module"`
}

func (*ReportAdded) EventType() string { return EventReportAdded }

// CommentChanged reports an edited central repository comment on a file
type CommentChanged struct {
	EventHeader `msgpack:",inline"`
	ContentID   int64  `msgpack:"content_id" json:"content_id"`
	Comment     string `msgpack:"comment" json:"comment"`
}

func (*CommentChanged) EventType() string { return EventCommentChanged }
