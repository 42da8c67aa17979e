// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

/*
Package spatial provides the in-memory index the enricher queries to find
cameras and weather stations near an event's coordinates.

# Overview

The index holds two lists, cameras and weather stations, that the worker
manager rebuilds from the database after each sync. Lookups are:

  - NearbyCameras: cameras within a radius, optionally constrained to a
    target road, sorted by ascending great-circle distance
  - NearestStation: the closest weather station within a radius

# Distance

Distances are great-circle kilometres computed with the haversine formula
on a spherical Earth (radius 6371 km). At Swedish latitudes the error
against the ellipsoid is well under the camera radius granularity.

# Road affinity

Camera names often embed the road they watch ("E4 Syd", "Rv73 Trpl
Handen"). When a target road is given, a candidate whose name mentions road
tokens is rejected unless one of them equals the target; candidates whose
names carry no road token at all are kept. This stops an E4 incident from
being illustrated by a camera pointed at a parallel county road.

# Concurrency

Both lists are replaced wholesale under a mutex when a sync completes;
readers always observe one consistent snapshot and never a partially
updated list.
*/
package spatial
