package outbox

import "example.com/ecotrack/internal/events"

const activityLoggedSchema = `{
  "type": "object",
  "title": "ActivityLogged",
  "properties": {
    "activity_id": {"type": "string"},
    "owner_id": {"type": "string"},
    "owner_name": {"type": "string"},
    "kind": {"type": "string", "enum": ["transport", "food", "energy"]},
    "subtype": {"type": "string"},
    "quantity": {"type": "number", "minimum": 0},
    "unit": {"type": "string"},
    "estimated_mass_kg": {"type": "number", "minimum": 0},
    "recorded_at": {"type": "string", "format": "date-time"}
  },
  "required": ["activity_id", "owner_id", "kind", "subtype", "quantity", "unit", "estimated_mass_kg", "recorded_at"],
  "additionalProperties": false
}`

const footprintChangedSchema = `{
  "type": "object",
  "title": "FootprintChanged",
  "properties": {
    "owner_id": {"type": "string"},
    "activity_id": {"type": "string"},
    "total_mass_kg": {"type": "number", "minimum": 0},
    "activity_count": {"type": "integer", "minimum": 0},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["owner_id", "activity_id", "total_mass_kg", "activity_count", "occurred_at"],
  "additionalProperties": false
}`

// SchemaCatalogEntry maps event type to schema definition.
type SchemaCatalogEntry struct {
	Schema string
}

var schemaCatalog = map[string]SchemaCatalogEntry{
	events.TypeActivityLogged: {
		Schema: activityLoggedSchema,
	},
	events.TypeFootprintChanged: {
		Schema: footprintChangedSchema,
	},
}
