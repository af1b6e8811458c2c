package decision

import "strings"

// DeferredAssignmentQueue receives every device type without a dedicated center.
const DeferredAssignmentQueue = "Deferred Assignment Queue"

// RepairCenterAssignment is the routing result for a new ticket.
type RepairCenterAssignment struct {
	Center   string
	Deferred bool
}

var repairCenters = map[string]string{
	"Smartphone": "Repair Center A",
	"Laptop":     "Repair Center B",
	"TV":         "Repair Center C",
}

// AssignRepairCenter routes a device type. Unknown types are valid and land in
// the deferred queue.
func AssignRepairCenter(deviceType string) RepairCenterAssignment {
	if center, ok := repairCenters[strings.TrimSpace(deviceType)]; ok {
		return RepairCenterAssignment{Center: center}
	}
	return RepairCenterAssignment{Center: DeferredAssignmentQueue, Deferred: true}
}

// KnownDeviceTypes returns the device types that have a dedicated center.
func KnownDeviceTypes() []string {
	return []string{"Smartphone", "Laptop", "TV"}
}
