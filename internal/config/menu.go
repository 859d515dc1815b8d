package config

import "os"

// MenuConfig is the static voice-menu configuration.
type MenuConfig struct {
	Voice        string
	HoldMusicURL string

	// Estimated-wait and queue-position announcements in the greeting.
	GetEwt           bool
	GetQueuePosition bool
	// Stat window, in minutes, for wait estimates.
	StatPeriod int

	// Agent audible alert tones, stamped on created work items.
	VoicemailAlertTone string
	CallbackAlertTone  string

	TimeZone string
}

// DefaultMenuConfig holds the default menu configuration values.
var DefaultMenuConfig = MenuConfig{
	Voice:              "Polly.Joanna",
	HoldMusicURL:       "assets/guitar_music.mp3",
	GetEwt:             false,
	GetQueuePosition:   false,
	StatPeriod:         5,
	VoicemailAlertTone: "/assets/alertTone.mp3",
	CallbackAlertTone:  "/assets/alertTone.mp3",
	TimeZone:           "America/Los_Angeles",
}

// LoadMenuConfig loads the menu configuration, with environment overrides
// for the fields operators commonly change per deployment.
func LoadMenuConfig() MenuConfig {
	cfg := DefaultMenuConfig
	setString(&cfg.Voice, "MENU_VOICE")
	setString(&cfg.HoldMusicURL, "MENU_HOLD_MUSIC_URL")
	setString(&cfg.TimeZone, "MENU_TIMEZONE")
	setBool(&cfg.GetEwt, "MENU_GET_EWT")
	setBool(&cfg.GetQueuePosition, "MENU_GET_QUEUE_POSITION")
	return cfg
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v == "true" || v == "1"
	}
}
