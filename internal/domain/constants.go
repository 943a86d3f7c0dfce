package domain

// Realtime event names.
const (
	EventJoin            = "join"
	EventHeartbeat       = "heartbeat"
	EventForceDisconnect = "force-disconnect"

	EventOnlineUsers   = "online-users"
	EventLastSeenUsers = "last-seen-users"

	EventCalendarUpdated = "calendar-updated"
	EventCalendarDeleted = "calendar-deleted"
)

const (
	updatedSuffix = "-updated"
	deletedSuffix = "-deleted"
)

// Defaults applied to new jobs.
const (
	JobStatusNew = "nuevo"
)

const (
	ExpenseTypeMonthly = "monthly"
)

const (
	ActivityListLimit = 40
)
