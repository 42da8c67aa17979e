// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

/*
Package models defines data structures for the Trafikinfo application.

This package contains all data models used throughout the application:
database row types, API response structures, the pipeline entity union, and
the Swedish domain tables (county numbers, severity and condition texts).
It serves as the single source of truth for data structure definitions.

Key Components:

  - Incident: Traffic situation collapsed from upstream deviations
  - IncidentVersion: Pre-change snapshot appended on significant updates
  - RoadCondition: Road-surface condition advisory with id-rotation dedup
  - Camera, WeatherStation: Enrichment sources synced from the upstream
  - PushSubscription, ClientInterest: Per-device and per-viewer filters
  - Entity / EntityChange: Tagged union flowing through the pipeline
  - APIResponse: Standardized API response wrapper

Design Principles:

 1. Entities cross every internal boundary as typed values; only the
    upstream decoder and the outbound serializers see raw JSON.
 2. Enrichment fields live in a shared record embedded in both entity
    variants and never participate in change detection.
 3. Optional upstream fields (times, coordinates) are pointers so that
    "absent" and "zero" stay distinguishable.
*/
package models
