package ws

import (
	"github.com/vedran77/decsecmsg/internal/domain"
	"github.com/vedran77/decsecmsg/internal/presence"
	"go.uber.org/zap"
)

// HubNotifier implements service.Notifier on top of the presence registry.
// Delivery is at most once: an offline or backed-up recipient picks the
// message up by polling.
type HubNotifier struct {
	registry *presence.Registry
	logger   *zap.Logger
}

func NewHubNotifier(registry *presence.Registry, logger *zap.Logger) *HubNotifier {
	return &HubNotifier{registry: registry, logger: logger}
}

func (n *HubNotifier) NotifyNewMessage(msg *domain.Message) {
	conn, ok := n.registry.Lookup(msg.ReceiverID)
	if !ok {
		n.logger.Debug("recipient offline", zap.Stringer("message", msg.ID), zap.Stringer("receiver", msg.ReceiverID))
		return
	}

	data, err := encodeEvent(EventTypeNewMessage, msg)
	if err != nil {
		n.logger.Error("marshal new_message", zap.Error(err))
		return
	}

	if !conn.Send(data) {
		n.logger.Warn("push dropped",
			zap.Stringer("message", msg.ID),
			zap.Stringer("receiver", msg.ReceiverID),
			zap.String("conn", conn.ID()),
		)
	}
}
