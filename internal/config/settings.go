package config

import (
	"log"

	"github.com/spf13/viper"
)

// Estimating settings. These used to live as loosely typed JSONB blobs
// read all over the pricing code; here they are one versioned struct
// resolved once at startup. Defaults below are the documented rates;
// a settings.yaml next to the binary (or at SETTINGS_PATH) overrides.
type Settings struct {
	Version    int                `mapstructure:"version"`
	Markup     MarkupSettings     `mapstructure:"markup"`
	Burden     BurdenSettings     `mapstructure:"burden"`
	Insurance  InsuranceSettings  `mapstructure:"insurance"`
	Confidence ConfidenceSettings `mapstructure:"confidence"`
}

type MarkupSettings struct {
	// DefaultPercent seeds new takeoffs. LegacyPercent is the fallback
	// when a caller prices without an explicit percent. The two differ
	// historically (35 vs 15); both are kept visible rather than
	// silently unified.
	DefaultPercent float64 `mapstructure:"default_percent"`
	LegacyPercent  float64 `mapstructure:"legacy_percent"`
}

type BurdenSettings struct {
	// Percent-of-base-labor loadings.
	LIRatePercent       float64 `mapstructure:"li_rate_percent"`
	UnemploymentPercent float64 `mapstructure:"unemployment_percent"`
}

type InsuranceSettings struct {
	// Project insurance, dollars per $1,000 of subtotal (v2 only).
	RatePer1000 float64 `mapstructure:"rate_per_1000"`
}

type ConfidenceSettings struct {
	Min     float64 `mapstructure:"min"`
	ShowLow bool    `mapstructure:"show_low"`
}

const settingsVersion = 2

// LoadSettings resolves estimating settings with defaults applied. A
// missing settings file is not an error; the defaults stand.
func LoadSettings() Settings {
	v := viper.New()
	v.SetConfigName("settings")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if p := getEnv("SETTINGS_PATH", ""); p != "" {
		v.AddConfigPath(p)
	}

	v.SetDefault("version", settingsVersion)
	v.SetDefault("markup.default_percent", 35.0)
	v.SetDefault("markup.legacy_percent", 15.0)
	v.SetDefault("burden.li_rate_percent", 12.65)
	v.SetDefault("burden.unemployment_percent", 6.60)
	v.SetDefault("insurance.rate_per_1000", 24.38)
	v.SetDefault("confidence.min", 0.5)
	v.SetDefault("confidence.show_low", true)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("settings file unreadable, using defaults: %v", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		log.Printf("settings unmarshal failed, using defaults: %v", err)
		return defaultSettings()
	}
	return s
}

func defaultSettings() Settings {
	return Settings{
		Version:    settingsVersion,
		Markup:     MarkupSettings{DefaultPercent: 35, LegacyPercent: 15},
		Burden:     BurdenSettings{LIRatePercent: 12.65, UnemploymentPercent: 6.60},
		Insurance:  InsuranceSettings{RatePer1000: 24.38},
		Confidence: ConfidenceSettings{Min: 0.5, ShowLow: true},
	}
}
