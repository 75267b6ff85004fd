package eventbus

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// NewEvent
// ---------------------------------------------------------------------------

func TestNewEvent_Success(t *testing.T) {
	data := map[string]string{"case_id": "C0123456789ab"}

	event, err := NewEvent(SubjectCaseOpened, "fraud-investigator", data)
	require.NoError(t, err)
	require.NotNil(t, event)

	assert.Equal(t, SubjectCaseOpened, event.Type)
	assert.Equal(t, "fraud-investigator", event.Source)
	assert.False(t, event.Timestamp.IsZero())

	_, err = uuid.Parse(event.ID)
	assert.NoError(t, err)

	var decoded map[string]string
	require.NoError(t, event.Decode(&decoded))
	assert.Equal(t, "C0123456789ab", decoded["case_id"])
}

func TestNewEvent_NilData(t *testing.T) {
	event, err := NewEvent("test.event", "test-source", nil)
	require.NoError(t, err)
	assert.Equal(t, json.RawMessage("null"), event.Data)
}

func TestNewEvent_UnmarshalableData(t *testing.T) {
	_, err := NewEvent("test.event", "test-source", make(chan int))
	assert.Error(t, err)
}

func TestNewEvent_UniqueIDs(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		event, err := NewEvent("test.event", "test-source", i)
		require.NoError(t, err)
		assert.False(t, seen[event.ID], "duplicate event id %s", event.ID)
		seen[event.ID] = true
	}
}

func TestEvent_JSONRoundTripKeepsEnvelope(t *testing.T) {
	event, err := NewEvent(SubjectTransactionScored, "fraud-investigator", map[string]int{"risk_score": 42})
	require.NoError(t, err)
	event.CorrelationID = "corr-1"

	raw, err := json.Marshal(event)
	require.NoError(t, err)

	var decoded Event
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, event.ID, decoded.ID)
	assert.Equal(t, "corr-1", decoded.CorrelationID)
	assert.JSONEq(t, `{"risk_score":42}`, string(decoded.Data))
}

// ---------------------------------------------------------------------------
// Bus (without a server)
// ---------------------------------------------------------------------------

func TestBus_ZeroValueIsDisconnected(t *testing.T) {
	b := &Bus{}
	assert.False(t, b.Connected())
	assert.Error(t, b.Check())
}
