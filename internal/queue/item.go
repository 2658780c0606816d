// Package queue defines the persisted push queue: one Item per pending or
// attempted push of one entity under one rule.
package queue

import (
	"time"

	"github.com/feedops/courier/internal/domain"
)

// Status is the lifecycle state of a queue item. Values below 100 are
// progress states; values of 100 and above are error states, so a single
// `status >= 100` filter selects everything that failed.
type Status int

// Item statuses.
const (
	StatusNew        Status = 10
	StatusInProgress Status = 20
	StatusPushed     Status = 50

	StatusPushError                 Status = 110
	StatusOutputGenerationError     Status = 120
	StatusSendError                 Status = 130
	StatusFilterByInstanceTypeError Status = 140
	StatusFilterByUpdatesError      Status = 150
	StatusFilterByStateError        Status = 160
	StatusGetDirectoryError         Status = 170
	StatusValidationError           Status = 180
	StatusSupervisorError           Status = 190
	StatusOutputMakerError          Status = 200
	StatusTemplateNotFound          Status = 210
)

// Failed reports whether the status is an error state.
func (s Status) Failed() bool {
	return s >= 100
}

func (s Status) String() string {
	switch s {
	case StatusNew:
		return "new"
	case StatusInProgress:
		return "in_progress"
	case StatusPushed:
		return "pushed"
	case StatusPushError:
		return "push_error"
	case StatusOutputGenerationError:
		return "output_generation_error"
	case StatusSendError:
		return "send_error"
	case StatusFilterByInstanceTypeError:
		return "filter_by_instance_type_error"
	case StatusFilterByUpdatesError:
		return "filter_by_updates_error"
	case StatusFilterByStateError:
		return "filter_by_state_error"
	case StatusGetDirectoryError:
		return "get_directory_error"
	case StatusValidationError:
		return "validation_error"
	case StatusSupervisorError:
		return "supervisor_error"
	case StatusOutputMakerError:
		return "output_maker_error"
	case StatusTemplateNotFound:
		return "template_not_found"
	default:
		return "unknown"
	}
}

// Item is one push obligation in the queue.
type Item struct {
	ID            string
	RuleName      string
	PushURL       string
	Status        Status
	AttemptCount  int
	LastAttemptAt *time.Time
	Message       string
	ContentRef    domain.ContentRef
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
