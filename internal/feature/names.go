package feature

// humanNames maps technical feature names to the labels shown to analysts.
// Features without an entry fall back to a title-cased technical name.
var humanNames = map[string]string{
	"failed_login_attempts":           "Failed Authentication Count",
	"successful_login_after_failures": "Successful Login After Failures",
	"process_hash_known":              "Known Process Hash",
	"admin_privilege_escalation":      "Administrative Privilege Escalation",
	"off_hours_activity":              "Off-Hours Activity",
	"data_volume_mb":                  "Data Transfer Volume (MB)",
	"connection_duration_seconds":     "Connection Duration (seconds)",
	"unique_destinations_count":       "Unique Destination Count",
	"geo_impossible_travel":           "Geographically Impossible Travel",
	"user_agent_anomaly":              "User Agent Anomaly",
	"threat_intel_match":              "Threat Intelligence Match",
	"lateral_movement_detected":       "Lateral Movement Detected",
	"hour_of_day":                     "Hour of Day",
	"day_of_week":                     "Day of Week",
	"is_night_shift":                  "Night Shift Activity",
	"login_risk_score":                "Login Risk Score",
	"privilege_risk":                  "Privilege Risk Score",
	"threat_indicator_count":          "Total Threat Indicators",
	"source_country_encoded":          "Source Country Risk Encoding",
	"uncommon_port":                   "Uncommon Destination Port",
}
