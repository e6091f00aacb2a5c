package models

import "time"

// CurrentSchemaVersion tags the shape produced by the templates below.
// Older local records are upgraded on load.
const CurrentSchemaVersion = 3

// Weekdays are the full day names used as schedule keys.
var Weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

func consent() Record {
	return Record{"checked": false, "timestamp": nil}
}

func clientSection() Record {
	return Record{
		"name":        "",
		"dateOfBirth": "",
		"phone":       "",
		"email":       "",
		"address":     "",
	}
}

func scheduleSection() Record {
	return Record{
		"days":      []any{},
		"hours":     Record{},
		"startDate": "",
	}
}

// TemplateData returns a fresh copy of the wizard's initial form record for
// the given draft type.
func TemplateData(t DraftType) Record {
	switch t {
	case DraftTypeServiceContract:
		return Record{
			"client": clientSection(),
			"services": Record{
				"selected":     []any{},
				"hoursPerWeek": 0,
				"notes":        "",
			},
			"schedule": scheduleSection(),
			"billing": Record{
				"rate":      "",
				"frequency": "weekly",
				"payer":     "",
			},
			"consents": Record{
				"terms":   consent(),
				"privacy": consent(),
			},
		}
	default:
		return Record{
			"client": clientSection(),
			"emergencyContact": Record{
				"name":         "",
				"relationship": "",
				"phone":        "",
			},
			"medicalInfo": Record{
				"conditions":  "",
				"medications": "",
				"allergies":   "",
				"physician":   "",
				"hospitals":   []any{},
			},
			"schedule": scheduleSection(),
			"consents": Record{
				"privacy":   consent(),
				"treatment": consent(),
				"photo":     consent(),
			},
			"notes": "",
		}
	}
}

// Template returns the initial draft the wizard starts from.
func Template(id string, t DraftType) Draft {
	return Draft{
		ID:            id,
		Type:          t,
		Status:        DraftStatusDraft,
		CurrentStep:   0,
		Data:          TemplateData(t),
		LastModified:  time.Time{},
		SchemaVersion: CurrentSchemaVersion,
	}
}
