package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus_Failed(t *testing.T) {
	tests := []struct {
		status Status
		failed bool
	}{
		{StatusNew, false},
		{StatusInProgress, false},
		{StatusPushed, false},
		{StatusPushError, true},
		{StatusOutputGenerationError, true},
		{StatusSendError, true},
		{StatusFilterByInstanceTypeError, true},
		{StatusFilterByUpdatesError, true},
		{StatusFilterByStateError, true},
		{StatusGetDirectoryError, true},
		{StatusValidationError, true},
		{StatusSupervisorError, true},
		{StatusOutputMakerError, true},
		{StatusTemplateNotFound, true},
	}

	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			assert.Equal(t, tt.failed, tt.status.Failed())
		})
	}
}

func TestStatus_Ordinals(t *testing.T) {
	// The numeric values are part of the persisted schema and of the
	// `status >= 100` failure filter; they must never drift.
	assert.Equal(t, 10, int(StatusNew))
	assert.Equal(t, 20, int(StatusInProgress))
	assert.Equal(t, 50, int(StatusPushed))
	assert.Equal(t, 110, int(StatusPushError))
	assert.Equal(t, 120, int(StatusOutputGenerationError))
	assert.Equal(t, 130, int(StatusSendError))
	assert.Equal(t, 140, int(StatusFilterByInstanceTypeError))
	assert.Equal(t, 150, int(StatusFilterByUpdatesError))
	assert.Equal(t, 160, int(StatusFilterByStateError))
	assert.Equal(t, 170, int(StatusGetDirectoryError))
	assert.Equal(t, 180, int(StatusValidationError))
	assert.Equal(t, 190, int(StatusSupervisorError))
	assert.Equal(t, 200, int(StatusOutputMakerError))
	assert.Equal(t, 210, int(StatusTemplateNotFound))
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "new", StatusNew.String())
	assert.Equal(t, "send_error", StatusSendError.String())
	assert.Equal(t, "unknown", Status(999).String())
}
