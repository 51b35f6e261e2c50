package config

import "github.com/hyp3rd/ewrap/pkg/ewrap"

// implement the validatable interface.
var _ validatable = (*EndpointsConfig)(nil)

// EndpointConfig describes one physical database server the data plane
// may route to.
type EndpointConfig struct {
	ID     string `mapstructure:"id"`
	DSN    string `mapstructure:"dsn"`
	Role   string `mapstructure:"role"` // primary | replica | analytics
	Weight int    `mapstructure:"weight"`
	Region string `mapstructure:"region"`
	AZ     string `mapstructure:"az"`
}

// EndpointsConfig is the list of endpoints the data plane manages.
type EndpointsConfig struct {
	Endpoints []EndpointConfig `mapstructure:"endpoints"`
}

// Validate checks the validity of the EndpointsConfig struct.
func (c *EndpointsConfig) Validate(eg *ewrap.ErrorGroup) {
	if len(c.Endpoints) == 0 {
		eg.Add(ewrap.New("at least one endpoint is required"))

		return
	}

	seen := make(map[string]bool, len(c.Endpoints))

	hasPrimary := false

	for _, ep := range c.Endpoints {
		if ep.ID == "" {
			eg.Add(ewrap.New("endpoint id is required"))
		}

		if seen[ep.ID] {
			eg.Add(ewrap.New("duplicate endpoint id").WithMetadata("id", ep.ID))
		}

		seen[ep.ID] = true

		if ep.DSN == "" {
			eg.Add(ewrap.New("endpoint dsn is required").WithMetadata("id", ep.ID))
		}

		switch ep.Role {
		case "primary":
			hasPrimary = true
		case "replica", "analytics":
		default:
			eg.Add(ewrap.New("invalid endpoint role").WithMetadata("id", ep.ID).WithMetadata("role", ep.Role))
		}

		if ep.Weight <= 0 {
			eg.Add(ewrap.New("invalid endpoint weight").WithMetadata("id", ep.ID))
		}
	}

	if !hasPrimary {
		eg.Add(ewrap.New("at least one primary endpoint is required"))
	}
}
