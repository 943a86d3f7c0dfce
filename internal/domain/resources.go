package domain

import (
	"regexp"
	"strconv"
	"strings"
)

// Shaper turns a request body into the fields written to the store.
type Shaper func(body map[string]any) map[string]any

// Resource describes one CRUD collection and the realtime events it emits.
type Resource struct {
	// Name is the singular event prefix, e.g. "client".
	Name string
	// Collection is both the store collection and the route segment.
	Collection string

	SortField  string
	Descending bool
	Limit      int

	ShapeCreate Shaper
	ShapeUpdate Shaper
}

func (r Resource) UpdatedEvent() string { return r.Name + updatedSuffix }
func (r Resource) DeletedEvent() string { return r.Name + deletedSuffix }

var (
	Clients = Resource{
		Name:        "client",
		Collection:  "clients",
		ShapeCreate: passthrough,
		ShapeUpdate: passthrough,
	}
	Tasks = Resource{
		Name:        "task",
		Collection:  "tasks",
		ShapeCreate: pick("user", "day", "text"),
		ShapeUpdate: passthrough,
	}
	Activities = Resource{
		Name:        "activity",
		Collection:  "activities",
		SortField:   "timestamp",
		Descending:  true,
		Limit:       ActivityListLimit,
		ShapeCreate: shapeActivity,
		ShapeUpdate: shapeActivityUpdate,
	}
	Expenses = Resource{
		Name:        "expense",
		Collection:  "expenses",
		ShapeCreate: shapeExpense,
		ShapeUpdate: shapeExpenseUpdate,
	}
	Jobs = Resource{
		Name:        "job",
		Collection:  "jobs",
		ShapeCreate: shapeJob,
		ShapeUpdate: shapeJobUpdate,
	}
)

// Resources lists every CRUD collection in route order.
func Resources() []Resource {
	return []Resource{Clients, Activities, Tasks, Expenses, Jobs}
}

// IsRelayEvent reports whether a client may re-broadcast event verbatim.
func IsRelayEvent(event string) bool {
	for _, r := range Resources() {
		if event == r.UpdatedEvent() || event == r.DeletedEvent() {
			return true
		}
	}
	return false
}

func passthrough(body map[string]any) map[string]any {
	out := make(map[string]any, len(body))
	for k, v := range body {
		out[k] = v
	}
	return out
}

func pick(keys ...string) Shaper {
	return func(body map[string]any) map[string]any {
		out := make(map[string]any, len(keys))
		for _, k := range keys {
			out[k] = body[k]
		}
		return out
	}
}

func shapeActivity(body map[string]any) map[string]any {
	return map[string]any{
		"user":      body["user"],
		"action":    cleanAction(body["action"]),
		"timestamp": body["timestamp"],
	}
}

func shapeActivityUpdate(body map[string]any) map[string]any {
	out := passthrough(body)
	if v, ok := out["action"]; ok {
		out["action"] = cleanAction(v)
	}
	return out
}

func shapeExpense(body map[string]any) map[string]any {
	out := map[string]any{
		"title":    body["title"],
		"cost":     numberOrNil(body["cost"]),
		"type":     body["type"],
		"renewDay": nil,
		"category": stringOr(body["category"], ""),
	}
	if body["type"] == ExpenseTypeMonthly {
		out["renewDay"] = numberOrNil(body["renewDay"])
	}
	return out
}

func shapeExpenseUpdate(body map[string]any) map[string]any {
	out := passthrough(body)
	if v, ok := out["cost"]; ok {
		out["cost"] = numberOrNil(v)
	}
	if t, ok := out["type"]; ok && t != ExpenseTypeMonthly {
		out["renewDay"] = nil
	} else if v, ok := out["renewDay"]; ok {
		out["renewDay"] = numberOrNil(v)
	}
	return out
}

func shapeJob(body map[string]any) map[string]any {
	return map[string]any{
		"clientId":    body["clientId"],
		"title":       body["title"],
		"description": stringOr(body["description"], ""),
		"status":      stringOr(body["status"], JobStatusNew),
		"budget":      numberOrZero(body["budget"]),
	}
}

// shapeJobUpdate coerces budget only when the caller sends it, so a partial
// update leaves the stored budget alone.
func shapeJobUpdate(body map[string]any) map[string]any {
	out := passthrough(body)
	if v, ok := out["budget"]; ok {
		out["budget"] = numberOrZero(v)
	}
	return out
}

var (
	htmlTag = regexp.MustCompile(`<[^>]+>`)
)

// CleanHTML strips markup from a free-text activity description.
func CleanHTML(text string) string {
	text = htmlTag.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, "&nbsp;", " ")
	return strings.TrimSpace(text)
}

func cleanAction(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	return CleanHTML(s)
}

func stringOr(v any, def string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return def
}

// toNumber accepts JSON numbers and numeric strings. An empty string is 0.
func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, true
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func numberOrNil(v any) any {
	if f, ok := toNumber(v); ok {
		return f
	}
	return nil
}

func numberOrZero(v any) float64 {
	f, _ := toNumber(v)
	return f
}
