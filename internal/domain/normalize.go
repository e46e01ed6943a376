package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// UnknownLabel is stored for a missing location or species.
	UnknownLabel = "Unknown"

	// TimestampLayout is the feed's date-time format, also used for window bounds.
	TimestampLayout = "2006-01-02T15:04:05"

	// DateLayout is the date-only prefix of TimestampLayout.
	DateLayout = "2006-01-02"
)

// envelopeKeys are checked in order when the payload is a JSON object.
var envelopeKeys = []string{"data", "sightings", "results"}

var monthCodes = map[string]time.Month{
	"01": time.January, "02": time.February, "03": time.March,
	"04": time.April, "05": time.May, "06": time.June,
	"07": time.July, "08": time.August, "09": time.September,
	"10": time.October, "11": time.November, "12": time.December,
}

// timestampLayouts are tried in order by ParseTimestamp.
var timestampLayouts = []string{
	TimestampLayout,
	time.RFC3339,
	"2006-01-02T15:04",
	DateLayout,
}

// Normalize converts a raw feed record into a Sighting. The second result is
// false when the record has no usable identifier and must be skipped.
// Normalize never fails: unparseable dates leave year, month and time empty.
func Normalize(raw RawRecord) (Sighting, bool) {
	id, ok := identifier(raw["id"])
	if !ok {
		return Sighting{}, false
	}

	s := Sighting{
		ExternalID: id,
		Date:       dateField(raw["date"]),
		Location:   stringField(raw, "location", UnknownLabel),
		Species:    stringField(raw, "species", UnknownLabel),
		LatinName:  stringField(raw, "latinName", ""),
	}

	if parsed, ok := ParseDate(s.Date); ok {
		s.Year = parsed.Year
		s.Month = parsed.MonthName()
		s.Time = parsed.Time
	}
	return s, true
}

// ParseDate splits a feed date of the form "YYYY-MM-DD[THH:MM:SS]" into its
// year, month and time parts. It reports false for an empty string or one
// with fewer than two "-" separated components.
func ParseDate(date string) (ParsedDate, bool) {
	if date == "" {
		return ParsedDate{}, false
	}
	parts := strings.Split(date, "-")
	if len(parts) < 2 {
		return ParsedDate{}, false
	}

	p := ParsedDate{
		Year:  parts[0],
		Month: monthCodes[parts[1]],
	}
	if _, after, found := strings.Cut(date, "T"); found {
		p.Time, _, _ = strings.Cut(after, "T")
	}
	return p, true
}

// ParseTimestamp parses stored date text into a UTC time.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// MonthFromName maps a full English month name to its number.
func MonthFromName(name string) (time.Month, bool) {
	for m := time.January; m <= time.December; m++ {
		if m.String() == name {
			return m, true
		}
	}
	return 0, false
}

// DecodeBatch decodes a feed payload into raw records. The payload may be a
// list of objects, a single object, or an object wrapping the list under
// "data", "sightings" or "results". Items that are not objects decode as
// empty records so the normalizer skips them.
func DecodeBatch(payload []byte) ([]RawRecord, error) {
	var top any
	if err := decodeJSON(payload, &top); err != nil {
		return nil, fmt.Errorf("decode feed payload: %w: %w", ErrUpstreamFetch, err)
	}

	if obj, ok := top.(map[string]any); ok {
		for _, key := range envelopeKeys {
			if inner, found := obj[key]; found {
				top = inner
				break
			}
		}
	}

	switch v := top.(type) {
	case []any:
		records := make([]RawRecord, 0, len(v))
		for _, item := range v {
			obj, _ := item.(map[string]any)
			records = append(records, RawRecord(obj))
		}
		return records, nil
	case map[string]any:
		return []RawRecord{v}, nil
	default:
		return nil, fmt.Errorf("decode feed payload: %w: unexpected %T at top level", ErrUpstreamFetch, top)
	}
}

func decodeJSON(payload []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data after JSON value")
	}
	return nil
}

// identifier returns the stringified id, rejecting the feed's empty values:
// absent, null, "", false and numeric zero. Arrays and objects never
// identify a sighting.
func identifier(v any) (string, bool) {
	switch id := v.(type) {
	case nil:
		return "", false
	case string:
		return id, id != ""
	case bool:
		if !id {
			return "", false
		}
		return "True", true
	case json.Number:
		if f, err := id.Float64(); err == nil && f == 0 {
			return "", false
		}
		return id.String(), true
	case []any, map[string]any:
		return "", false
	default:
		return fmt.Sprint(id), true
	}
}

func dateField(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func stringField(raw RawRecord, key, fallback string) string {
	switch v := raw[key].(type) {
	case nil:
		return fallback
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
