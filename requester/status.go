package requester

import (
	"hlsfrag/enums"
	"hlsfrag/models"
)

type statusEvent int

const (
	eventAdmit statusEvent = iota
	eventComplete
	eventFail
	eventAbort
)

func (e statusEvent) String() string {
	switch e {
	case eventAdmit:
		return "admit"
	case eventComplete:
		return "complete"
	case eventFail:
		return "fail"
	case eventAbort:
		return "abort"
	default:
		return "unknown"
	}
}

// transition returns the status reached from current on event
// and whether it is a change that must be notified.
func transition(current enums.DownloadStatus, event statusEvent) (enums.DownloadStatus, bool) {
	switch event {
	case eventAdmit:
		// a fragment already in flight is not admitted twice
		if current == enums.DownloadStatusWaiting {
			return enums.DownloadStatusInitiated, true
		}
		return current, false
	case eventComplete:
		if current == enums.DownloadStatusComplete {
			return current, false
		}
		return enums.DownloadStatusComplete, true
	case eventFail:
		// repeated failures are notified every time
		return enums.DownloadStatusFailed, true
	case eventAbort:
		return enums.DownloadStatusWaiting, true
	default:
		return current, false
	}
}

type tracker struct {
	notifier *notifier
}

// apply moves fragment along event, the write and
// its notification happen as one step.
func (t *tracker) apply(fragment *models.Fragment, event statusEvent) bool {
	return fragment.Transition(
		func(current enums.DownloadStatus) (enums.DownloadStatus, bool) {
			return transition(current, event)
		},
		t.notifier.fragmentUpdated,
	)
}
