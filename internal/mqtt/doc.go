// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

// Package mqtt publishes entity changes to an MQTT broker. Broker settings
// live in the runtime settings table; Configure re-reads them and
// reconnects when they changed, so settings writes take effect without a
// restart. Outbound payloads carry only locally-served URLs plus the home
// automation extras (region name, seconds-until-end timeout, MDI icon,
// deep link).
package mqtt
