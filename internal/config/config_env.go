// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/trafikinfo/trafikinfo/internal/models"
)

// settingSeed maps one environment variable to one runtime setting key.
// Seeds are applied once at startup for settings that have never been
// written through the API, so container deployments can pre-configure
// the instance without touching the settings endpoint.
type settingSeed struct {
	Env string
	Key string
}

// settingSeeds is ordered so seeding (and its log output) is deterministic.
var settingSeeds = []settingSeed{
	{Env: "TRAFIKVERKET_API_KEY", Key: models.SettingAPIKey},
	{Env: "SELECTED_COUNTIES", Key: models.SettingSelectedCounties},
	{Env: "CAMERA_RADIUS_KM", Key: models.SettingCameraRadiusKM},
	{Env: "MQTT_ENABLED", Key: models.SettingMQTTEnabled},
	{Env: "MQTT_HOST", Key: models.SettingMQTTHost},
	{Env: "MQTT_PORT", Key: models.SettingMQTTPort},
	{Env: "MQTT_USERNAME", Key: models.SettingMQTTUsername},
	{Env: "MQTT_PASSWORD", Key: models.SettingMQTTPassword},
	{Env: "MQTT_TOPIC", Key: models.SettingMQTTTopic},
	{Env: "MQTT_RC_TOPIC", Key: models.SettingMQTTRCTopic},
	{Env: "RETENTION_DAYS", Key: models.SettingRetentionDays},
	{Env: "BASE_URL", Key: models.SettingBaseURL},
	{Env: "ADMIN_PASSWORD", Key: models.SettingAdminPassword},
	{Env: "PUSH_NOTIFICATIONS_ENABLED", Key: models.SettingPushNotificationsEnabled},
	{Env: "SOUND_NOTIFICATIONS_ENABLED", Key: models.SettingSoundNotificationsEnabled},
}

// SeedSettingsFromEnv collects runtime-setting overrides from the process
// environment. Values are trimmed; empty variables are ignored. Boolean
// and numeric seeds are normalized so downstream consumers never see
// variants like "True" or "8,5".
func SeedSettingsFromEnv() map[string]string {
	seeds := make(map[string]string)
	for _, s := range settingSeeds {
		value := strings.TrimSpace(os.Getenv(s.Env))
		if value == "" {
			continue
		}
		if normalized, ok := normalizeSeed(s.Key, value); ok {
			seeds[s.Key] = normalized
		}
	}
	return seeds
}

// normalizeSeed canonicalizes a seed value for its setting key. It returns
// false for values that cannot be repaired, which drops the seed rather
// than persisting garbage into the settings table.
func normalizeSeed(key, value string) (string, bool) {
	switch key {
	case models.SettingMQTTEnabled, models.SettingPushNotificationsEnabled, models.SettingSoundNotificationsEnabled:
		b, err := strconv.ParseBool(strings.ToLower(value))
		if err != nil {
			return "", false
		}
		return strconv.FormatBool(b), true
	case models.SettingMQTTPort, models.SettingRetentionDays:
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return "", false
		}
		return strconv.Itoa(n), true
	case models.SettingCameraRadiusKM:
		// Accept decimal comma since operators frequently paste values
		// from Swedish-locale tooling.
		f, err := strconv.ParseFloat(strings.ReplaceAll(value, ",", "."), 64)
		if err != nil || f <= 0 {
			return "", false
		}
		return strconv.FormatFloat(f, 'f', -1, 64), true
	case models.SettingSelectedCounties:
		return normalizeCountyList(value)
	default:
		return value, true
	}
}

// normalizeCountyList parses a comma-separated county list, drops blanks
// and unknown numbers, and re-joins the survivors. An input with no valid
// county at all is rejected.
func normalizeCountyList(value string) (string, bool) {
	var counties []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || !models.ValidCounty(n) {
			continue
		}
		counties = append(counties, strconv.Itoa(n))
	}
	if len(counties) == 0 {
		return "", false
	}
	return strings.Join(counties, ","), true
}
