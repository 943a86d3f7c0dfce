package models

// CalendarEventInput is the body accepted by the calendar create/update routes.
// Start and End are RFC3339 date-times.
type CalendarEventInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Start       string `json:"start"`
	End         string `json:"end"`
}
