package localstore

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/draftkeeper/internal/models"
)

// Migrate deep-merges loaded into template two levels deep. For every
// template key the loaded value wins, except that when both sides hold a
// record the nested keys are merged with loaded winning. Keys present only
// in loaded are kept. Neither argument is modified.
func Migrate(template, loaded models.Record) models.Record {
	out := models.CloneRecord(loaded)
	if out == nil {
		out = models.Record{}
	}
	for k, tv := range template {
		lv, ok := out[k]
		if !ok {
			out[k] = models.CloneValue(tv)
			continue
		}
		tRec, tIsRec := tv.(map[string]any)
		lRec, lIsRec := lv.(map[string]any)
		if !tIsRec || !lIsRec {
			continue
		}
		for nk, nv := range tRec {
			if _, ok := lRec[nk]; !ok {
				lRec[nk] = models.CloneValue(nv)
			}
		}
	}
	return out
}

// pointMigration rewrites one historical shape in place. Each must be a
// no-op on data it has already rewritten.
type pointMigration struct {
	name  string
	apply func(data models.Record, lastModified time.Time)
}

var pointMigrations = []pointMigration{
	{name: "hospitals-list", apply: migrateHospitals},
	{name: "weekday-names", apply: migrateWeekdays},
	{name: "consent-objects", apply: migrateConsents},
}

// MigrateData runs the point migrations and then the generic merge against
// the template of draft type t.
func MigrateData(t models.DraftType, data models.Record, lastModified time.Time) models.Record {
	data = models.CloneRecord(data)
	if data == nil {
		data = models.Record{}
	}
	for _, m := range pointMigrations {
		m.apply(data, lastModified)
	}
	return Migrate(models.TemplateData(t), data)
}

// isEnvelope reports whether raw is a whole persisted draft rather than a
// bare form record written by older builds.
func isEnvelope(raw map[string]any) bool {
	if _, ok := raw["data"].(map[string]any); ok {
		return true
	}
	_, ok := raw["schemaVersion"]
	return ok
}

// migrateDraft turns a decoded stored value into a current-shape draft.
// initial supplies the identity for records that predate the envelope.
// It returns the schema version the stored value carried.
func migrateDraft(raw map[string]any, initial models.Draft) (models.Draft, int, error) {
	raw = models.CloneRecord(raw)
	if !isEnvelope(raw) {
		// wrap-bare-record
		raw = map[string]any{"data": raw}
	}

	if s, ok := raw["lastModified"].(string); ok {
		if _, err := time.Parse(time.RFC3339Nano, s); err != nil {
			delete(raw, "lastModified")
		}
	} else {
		delete(raw, "lastModified")
	}

	data, _ := raw["data"].(map[string]any)
	delete(raw, "data")

	buf, err := json.Marshal(raw)
	if err != nil {
		return models.Draft{}, 0, fmt.Errorf("re-encode envelope: %w", err)
	}
	var d models.Draft
	if err := json.Unmarshal(buf, &d); err != nil {
		return models.Draft{}, 0, fmt.Errorf("decode envelope: %w", err)
	}
	from := d.SchemaVersion

	if d.ID == "" {
		d.ID = initial.ID
	}
	if t, ok := models.ParseDraftType(string(d.Type)); ok {
		d.Type = t
	} else {
		d.Type = initial.Type
	}
	if d.Status == "" {
		d.Status = models.DraftStatusDraft
	}

	d.Data = MigrateData(d.Type, data, d.LastModified)
	d.SchemaVersion = models.CurrentSchemaVersion
	return d, from, nil
}

func migrateHospitals(data models.Record, _ time.Time) {
	mi, ok := data["medicalInfo"].(map[string]any)
	if !ok {
		return
	}
	name, hasName := mi["hospitalName"]
	phone, hasPhone := mi["hospitalPhone"]
	if !hasName && !hasPhone {
		return
	}
	delete(mi, "hospitalName")
	delete(mi, "hospitalPhone")

	n, _ := name.(string)
	p, _ := phone.(string)
	if n == "" && p == "" {
		if _, ok := mi["hospitals"]; !ok {
			mi["hospitals"] = []any{}
		}
		return
	}

	list, _ := mi["hospitals"].([]any)
	for _, h := range list {
		if rec, ok := h.(map[string]any); ok && rec["name"] == n && rec["phone"] == p {
			mi["hospitals"] = list
			return
		}
	}
	mi["hospitals"] = append([]any{map[string]any{"name": n, "phone": p}}, list...)
}

var weekdayAliases = map[string]string{
	"mon": "Monday", "tue": "Tuesday", "tues": "Tuesday", "wed": "Wednesday",
	"thu": "Thursday", "thur": "Thursday", "thurs": "Thursday", "fri": "Friday",
	"sat": "Saturday", "sun": "Sunday",
}

func fullWeekday(s string) (string, bool) {
	full, ok := weekdayAliases[strings.ToLower(strings.TrimSuffix(s, "."))]
	return full, ok
}

func migrateWeekdays(data models.Record, _ time.Time) {
	sched, ok := data["schedule"].(map[string]any)
	if !ok {
		return
	}

	if days, ok := sched["days"].([]any); ok {
		seen := make(map[string]bool, len(days))
		out := make([]any, 0, len(days))
		for _, d := range days {
			s, isStr := d.(string)
			if !isStr {
				out = append(out, d)
				continue
			}
			if full, ok := fullWeekday(s); ok {
				s = full
			}
			if seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
		sched["days"] = out
	}

	if hours, ok := sched["hours"].(map[string]any); ok {
		for k, v := range hours {
			full, ok := fullWeekday(k)
			if !ok {
				continue
			}
			delete(hours, k)
			if _, exists := hours[full]; !exists {
				hours[full] = v
			}
		}
	}
}

func migrateConsents(data models.Record, lastModified time.Time) {
	consents, ok := data["consents"].(map[string]any)
	if !ok {
		return
	}
	var ts any
	if !lastModified.IsZero() {
		ts = lastModified.UTC().Format(time.RFC3339Nano)
	}
	for k, v := range consents {
		b, ok := v.(bool)
		if !ok {
			continue
		}
		if b {
			consents[k] = map[string]any{"checked": true, "timestamp": ts}
		} else {
			consents[k] = map[string]any{"checked": false, "timestamp": nil}
		}
	}
}
