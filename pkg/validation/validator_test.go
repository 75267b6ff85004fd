package validation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleTxn struct {
	TxnID   string    `json:"txn_id" validate:"required,max=32"`
	TS      time.Time `json:"ts" validate:"required,not_future"`
	Grade   string    `json:"customer_grade" validate:"omitempty,customer_grade"`
	Channel string    `json:"channel" validate:"required,channel"`
	Type    string    `json:"transaction_type" validate:"omitempty,transaction_type"`
	Status  string    `json:"transaction_status" validate:"omitempty,transaction_status"`
	IP      string    `json:"ip_address" validate:"required,ip"`
}

func validSample() sampleTxn {
	return sampleTxn{
		TxnID:   "T1",
		TS:      time.Now().Add(-time.Minute),
		Grade:   "C",
		Channel: "card_not_present",
		Type:    "CASHOUT",
		Status:  "chargeback",
		IP:      "10.0.0.1",
	}
}

// ---------------------------------------------------------------------------
// Custom tags
// ---------------------------------------------------------------------------

func TestValidateStruct_Valid(t *testing.T) {
	s := validSample()
	assert.NoError(t, ValidateStruct(&s))
}

func TestValidateStruct_OptionalEnumsMayBeEmpty(t *testing.T) {
	s := validSample()
	s.Grade, s.Type, s.Status = "", "", ""
	assert.NoError(t, ValidateStruct(&s))
}

func TestValidateStruct_RejectsUnknownEnums(t *testing.T) {
	tests := []struct {
		name  string
		mut   func(*sampleTxn)
		field string
	}{
		{"grade", func(s *sampleTxn) { s.Grade = "E" }, "customer_grade"},
		{"lowercase grade", func(s *sampleTxn) { s.Grade = "a" }, "customer_grade"},
		{"channel", func(s *sampleTxn) { s.Channel = "online" }, "channel"},
		{"type", func(s *sampleTxn) { s.Type = "WIRE" }, "transaction_type"},
		{"status", func(s *sampleTxn) { s.Status = "pending" }, "transaction_status"},
		{"ip", func(s *sampleTxn) { s.IP = "not-an-ip" }, "ip_address"},
		{"future ts", func(s *sampleTxn) { s.TS = time.Now().Add(time.Hour) }, "ts"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSample()
			tt.mut(&s)

			err := ValidateStruct(&s)
			require.Error(t, err)

			ve, ok := err.(*ValidationError)
			require.True(t, ok)
			_, exists := ve.GetFieldError(tt.field)
			assert.True(t, exists, "expected error on %s, got %v", tt.field, ve.Errors)
		})
	}
}

func TestValidateStruct_RequiredMessage(t *testing.T) {
	s := validSample()
	s.TxnID = ""

	err := ValidateStruct(&s)
	require.Error(t, err)
	ve := err.(*ValidationError)
	msg, _ := ve.GetFieldError("txn_id")
	assert.Equal(t, "is required", msg)
}

// ---------------------------------------------------------------------------
// ValidationError methods
// ---------------------------------------------------------------------------

func TestValidationError_Error_SortedFields(t *testing.T) {
	ve := &ValidationError{
		Errors: map[string]string{
			"txn_id":  "is required",
			"channel": "must be one of card_present, card_not_present",
		},
	}

	assert.Equal(t,
		"validation failed: channel: must be one of card_present, card_not_present; txn_id: is required",
		ve.Error())
}

func TestValidationError_AddError_NilMap(t *testing.T) {
	ve := &ValidationError{}
	assert.False(t, ve.HasErrors())

	ve.AddError("field", "message")
	assert.True(t, ve.HasErrors())
	assert.Equal(t, "message", ve.Errors["field"])
}

// ---------------------------------------------------------------------------
// Query structs
// ---------------------------------------------------------------------------

func TestDailyVolumeRequest(t *testing.T) {
	assert.NoError(t, ValidateStruct(&DailyVolumeRequest{Days: 7, TZ: "Africa/Harare"}))
	assert.Error(t, ValidateStruct(&DailyVolumeRequest{Days: 91}))
}
