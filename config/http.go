package config

// HTTPConfig configures the read-only status API.
type HTTPConfig struct {
	Address string `json:"address"`
	// Token, when set, is required as a bearer token by the journal API.
	Token string `json:"token"`
}

// SetDefaults applies the default listen address.
func (c *HTTPConfig) SetDefaults() {
	if c.Address == "" {
		c.Address = ":8080"
	}
}
