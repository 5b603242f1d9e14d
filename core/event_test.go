package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEventHeader(t *testing.T) {
	h := NewEventHeader("examiner-1")

	assert.NotEmpty(t, h.ID)
	assert.Equal(t, "examiner-1", h.Instance)
	assert.False(t, h.OccurredAt.IsZero())
	assert.Equal(t, EventSourceLocal, h.Source())
	assert.False(t, h.IsRemote())

	other := NewEventHeader("examiner-1")
	assert.NotEqual(t, h.ID, other.ID, "every header must get a fresh id")
}

func TestEventHeader_MarkRemote(t *testing.T) {
	ev := &ContentTagAdded{EventHeader: NewEventHeader("a"), TagName: "Notable"}

	var e Event = ev
	e.Metadata().MarkRemote()

	assert.True(t, ev.IsRemote())
	assert.Equal(t, EventSourceRemote, ev.Source())
}

func TestEventHeader_ZeroValueIsLocal(t *testing.T) {
	var h EventHeader
	assert.Equal(t, EventSourceLocal, h.Source())
}

func TestEventTypes_Unique(t *testing.T) {
	events := []Event{
		&CaseOpened{}, &CaseClosed{}, &CaseDetailsChanged{}, &DataSourceAdded{},
		&ContentTagAdded{}, &ContentTagDeleted{}, &ArtifactTagAdded{},
		&ArtifactTagDeleted{}, &ReportAdded{}, &CommentChanged{},
	}

	seen := make(map[string]bool)
	for _, e := range events {
		require.NotEmpty(t, e.EventType())
		assert.False(t, seen[e.EventType()], "duplicate event type %s", e.EventType())
		seen[e.EventType()] = true
	}
}
