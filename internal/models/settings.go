// Trafikinfo - Swedish Road Traffic Information Aggregator
// Copyright 2026 Trafikinfo Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/trafikinfo/trafikinfo

package models

// Settings keys. Settings are a key→string map owned by the database and
// mutable only via the admin-authenticated settings endpoint.
const (
	SettingAPIKey           = "api_key"
	SettingSelectedCounties = "selected_counties"
	SettingCameraRadiusKM   = "camera_radius_km"

	SettingMQTTEnabled  = "mqtt_enabled"
	SettingMQTTHost     = "mqtt_host"
	SettingMQTTPort     = "mqtt_port"
	SettingMQTTUsername = "mqtt_username"
	SettingMQTTPassword = "mqtt_password"
	SettingMQTTTopic    = "mqtt_topic"
	SettingMQTTRCTopic  = "mqtt_rc_topic"

	SettingRetentionDays = "retention_days"
	SettingBaseURL       = "base_url"
	SettingAdminPassword = "admin_password"

	SettingPushNotificationsEnabled  = "push_notifications_enabled"
	SettingSoundNotificationsEnabled = "sound_notifications_enabled"
	SettingVAPIDPrivateKey           = "vapid_private_key"
	SettingVAPIDPublicKey            = "vapid_public_key"
)

// DefaultSettings holds the value each setting takes when the row is absent.
// Secrets (api_key, passwords, VAPID keys) default to empty.
var DefaultSettings = map[string]string{
	SettingAPIKey:           "",
	SettingSelectedCounties: "",
	SettingCameraRadiusKM:   "8.0",

	SettingMQTTEnabled:  "false",
	SettingMQTTHost:     "",
	SettingMQTTPort:     "1883",
	SettingMQTTUsername: "",
	SettingMQTTPassword: "",
	SettingMQTTTopic:    "trafikinfo/traffic",
	SettingMQTTRCTopic:  "trafikinfo/road_conditions",

	SettingRetentionDays: "30",
	SettingBaseURL:       "",
	SettingAdminPassword: "",

	SettingPushNotificationsEnabled:  "true",
	SettingSoundNotificationsEnabled: "false",
	SettingVAPIDPrivateKey:           "",
	SettingVAPIDPublicKey:            "",
}

// SecretSettings lists keys whose values must never appear in API responses
// or logs. GET /api/settings masks these.
var SecretSettings = map[string]bool{
	SettingAPIKey:          true,
	SettingMQTTPassword:    true,
	SettingAdminPassword:   true,
	SettingVAPIDPrivateKey: true,
}
