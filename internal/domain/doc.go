// Package domain models tick sighting records from the public sightings feed.
//
// # Data Source
//
// The upstream feed serves JSON over HTTP. A payload is either a list of
// sighting objects, a single object, or an envelope object holding the list
// under "data", "sightings" or "results" (the first key present wins).
// See [DecodeBatch].
//
// # Feed Conventions
//
// Record fields:
//
//	id         upstream identifier, string or number; the deduplication key
//	date       "2024-07-15T10:30:00" (local wall clock, no zone)
//	location   region label, e.g. "Manchester"
//	species    common name, e.g. "Marsh tick"
//	latinName  scientific name, e.g. "Ixodes apronophorus"
//
// Records with a missing or empty id are skipped. Missing location and
// species are stored as "Unknown"; a missing latinName is stored empty.
//
// Date handling:
//
//	The date is stored verbatim. Year, month and time are derived by
//	splitting on "-" and "T":
//	  "2024-07-15T10:30:00" → year "2024", month "July", time "10:30:00"
//	Month codes outside "01".."12" leave the month empty. A date without a
//	"-" separator leaves all three derived fields empty. See [ParseDate].
//
// Stored dates compare as strings. Because the feed uses a fixed-width ISO
// layout, lexicographic order is chronological order, and date range
// filters are plain string bounds.
package domain
