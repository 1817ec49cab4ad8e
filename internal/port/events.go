package port

import "github.com/mastidea/mastidea-server/internal/domain"

// UpdatePublisher lets services broadcast idea update events to whatever
// fan-out mechanism the transport layer provides (SSE today). Publishing
// never blocks: slow or absent subscribers drop events.
type UpdatePublisher interface {
	Publish(event domain.UpdateEvent)
}
