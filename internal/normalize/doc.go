// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

/*
Package normalize converts raw Trafikverket payloads into domain entities.

This is the only package that knows upstream field names. Everything past
it deals in typed models; everything before it deals in raw bytes.

# Batch shape

Both the push stream records and the one-shot query responses share the
envelope {"RESPONSE": {"RESULT": [{"<ObjectName>": [...]}]}}. The parsers
here unwrap it and map each object:

  - Situation  → models.Incident (one per situation, deviations merged)
  - RoadCondition → models.RoadCondition (one to one)
  - Camera, WeatherMeasurepoint, Icon → sync-loop records

# Situation merging

One upstream situation groups one or more deviations describing the same
incident from different angles (the closure, the queue, the speed limit).
They collapse into a single Incident: unique descriptions joined " | " in
first-seen order, earliest start, latest end, unique restriction and
message types joined ", ", coordinates from the first deviation carrying
geometry, county from the first deviation's county list.

The title falls back through: first deviation header, the icon-id
dictionary (roadwork → "Vägarbete", …), the joined message types, and
finally "Trafikhändelse".

# Error containment

A batch that fails to decode returns an error; a single malformed object
inside an otherwise valid batch is skipped with a log so one bad entity
never stops the stream.
*/
package normalize
