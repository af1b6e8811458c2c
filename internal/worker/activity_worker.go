package worker

import (
	"github.com/spec-kit/repair-service/internal/service"
)

// StartActivityWorker registers ticket activity handlers.
func StartActivityWorker(activityService *service.ActivityService) {
	if activityService == nil {
		return
	}
	activityService.RegisterHandlers()
}
