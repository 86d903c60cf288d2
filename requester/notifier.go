package requester

import (
	"hlsfrag/enums"
	"hlsfrag/models"

	"go.uber.org/zap"
)

type notifier struct {
	sink models.EventSink
}

func (n *notifier) fragmentUpdated(fragment *models.Fragment) {
	zap.S().Debugf("%s is now %s", fragment, fragment.Status())
	if n.sink == nil {
		return
	}
	n.sink.Emit(enums.EventFragmentUpdate, fragment)
}
