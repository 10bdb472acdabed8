package browser

import "testing"

func TestDefaultConfig_Valid(t *testing.T) {
	if err := DefaultConfig().validate(); err != nil {
		t.Errorf("DefaultConfig() does not validate: %v", err)
	}
}

func TestConfig_Validate_Rejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty user agent", func(c *Config) { c.UserAgent = "" }},
		{"zero nav timeout", func(c *Config) { c.NavTimeout = 0 }},
		{"window too narrow", func(c *Config) { c.WindowWidth = 100 }},
		{"window too short", func(c *Config) { c.WindowHeight = 100 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			if err := cfg.validate(); err == nil {
				t.Error("validate() accepted an invalid config")
			}
		})
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("New() with zero config should fail validation")
	}
}
