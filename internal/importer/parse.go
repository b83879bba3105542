// Package importer parses tabular batch input into candidate records and
// stages them for migration.
package importer

import (
	"strings"
)

// ParsedRecord is one candidate row resolved from a batch input.
type ParsedRecord struct {
	Name          string `json:"name"`
	Township      string `json:"township,omitempty"`
	Address       string `json:"address,omitempty"`
	Phone         string `json:"phone,omitempty"`
	ContactPerson string `json:"contact_person,omitempty"`
	Remark        string `json:"remark,omitempty"`
	AgentID       string `json:"agent_id,omitempty"`
}

// headerSynonyms maps recognized header tokens (lowercased, spaces
// collapsed to underscores) to canonical field names. Unrecognized
// headers are ignored.
var headerSynonyms = map[string]string{
	"name":            "name",
	"restaurant":      "name",
	"restaurant_name": "name",

	"township": "township",
	"area":     "township",
	"region":   "township",
	"city":     "township",

	"phone":        "phone",
	"contact":      "phone",
	"phone_number": "phone",
	"tel":          "phone",

	"address":  "address",
	"location": "address",

	"contact_person": "contact_person",
	"owner":          "contact_person",
	"person":         "contact_person",

	"remark":  "remark",
	"remarks": "remark",
	"note":    "remark",
	"notes":   "remark",

	"agent":        "agent_id",
	"agent_id":     "agent_id",
	"owner_id":     "agent_id",
	"owning_agent": "agent_id",
}

// Parse reads header-delimited tabular text. The first row is a header;
// each subsequent row becomes one candidate record. Quote characters are
// stripped from values and a row whose resolved name is empty after
// trimming is silently dropped. Rows are not cross-validated at parse
// time.
func Parse(raw string, delimiter rune) []ParsedRecord {
	lines := splitLines(raw)
	if len(lines) < 2 {
		return nil
	}

	fields := resolveHeader(splitRow(lines[0], delimiter))

	var out []ParsedRecord
	for _, line := range lines[1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		values := splitRow(line, delimiter)
		rec := assembleRecord(fields, values)
		if rec.Name == "" {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// resolveHeader maps each column index to a canonical field name, or ""
// for unrecognized headers.
func resolveHeader(tokens []string) []string {
	fields := make([]string, len(tokens))
	for i, tok := range tokens {
		key := strings.ToLower(strings.TrimSpace(tok))
		key = strings.ReplaceAll(key, " ", "_")
		fields[i] = headerSynonyms[key]
	}
	return fields
}

func assembleRecord(fields, values []string) ParsedRecord {
	var rec ParsedRecord
	for i, v := range values {
		if i >= len(fields) || fields[i] == "" {
			continue
		}
		switch fields[i] {
		case "name":
			rec.Name = v
		case "township":
			rec.Township = v
		case "address":
			rec.Address = v
		case "phone":
			rec.Phone = v
		case "contact_person":
			rec.ContactPerson = v
		case "remark":
			rec.Remark = v
		case "agent_id":
			rec.AgentID = v
		}
	}
	return rec
}

func splitLines(raw string) []string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	var lines []string
	for _, l := range strings.Split(raw, "\n") {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// splitRow splits on the delimiter and strips surrounding whitespace and
// quote characters. No escaping beyond quote stripping is supported.
func splitRow(line string, delimiter rune) []string {
	parts := strings.Split(line, string(delimiter))
	for i, p := range parts {
		p = strings.TrimSpace(p)
		p = strings.Trim(p, `"`)
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}
