// Package profile holds the statistical profile catalog: expected value
// distributions and operating limits per (machine type, parameter).
package profile

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Key identifies a profile by machine type and parameter name.
type Key struct {
	MachineType string
	Parameter   string
}

// Profile describes the expected distribution and limits of one parameter.
type Profile struct {
	Min    float64 `yaml:"min"`
	Max    float64 `yaml:"max"`
	Mean   float64 `yaml:"mean"`
	StdDev float64 `yaml:"stddev"`
	Unit   string  `yaml:"unit,omitempty"`
}

// Catalog is a read-only lookup table of parameter profiles. It is safe for
// concurrent use after construction.
type Catalog struct {
	profiles map[Key]Profile
}

// Default returns a catalog preloaded with the built-in machine type profiles.
func Default() *Catalog {
	c := &Catalog{profiles: make(map[Key]Profile, len(builtin))}
	for k, p := range builtin {
		c.profiles[k] = p
	}
	return c
}

// Load returns the default catalog overlaid with profiles from a YAML file.
// File entries replace built-in entries for the same (machine type, parameter).
func Load(path string) (*Catalog, error) {
	c := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading profile catalog: %w", err)
	}

	// machine_type -> parameter -> profile
	var raw map[string]map[string]Profile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing profile catalog: %w", err)
	}

	for machineType, params := range raw {
		for param, p := range params {
			if p.StdDev <= 0 {
				return nil, fmt.Errorf("profile %s/%s: stddev must be > 0", machineType, param)
			}
			if p.Min >= p.Max {
				return nil, fmt.Errorf("profile %s/%s: min must be < max", machineType, param)
			}
			c.profiles[Key{machineType, param}] = p
		}
	}
	return c, nil
}

// Lookup returns the profile for the given machine type and parameter.
func (c *Catalog) Lookup(machineType, parameter string) (Profile, bool) {
	p, ok := c.profiles[Key{machineType, parameter}]
	return p, ok
}

// Len returns the number of profiles in the catalog.
func (c *Catalog) Len() int { return len(c.profiles) }

// builtin covers the standard machine types of the fleet. Values are
// (min, max, mean, stddev) of the expected operating distribution.
var builtin = map[Key]Profile{
	{"cnc_lathe", "temperature"}:        {50, 85, 70, 5, "°C"},
	{"cnc_lathe", "vibration"}:          {0.1, 3.0, 0.8, 0.3, "mm/s"},
	{"cnc_lathe", "speed"}:              {500, 5000, 2500, 300, "rpm"},
	{"cnc_lathe", "torque"}:             {10, 100, 50, 10, "Nm"},
	{"cnc_lathe", "energy_consumption"}: {5, 30, 15, 3, "kW"},

	{"milling_machine", "temperature"}:        {45, 80, 65, 5, "°C"},
	{"milling_machine", "vibration"}:          {0.2, 2.5, 0.7, 0.2, "mm/s"},
	{"milling_machine", "speed"}:              {300, 3000, 1500, 200, "rpm"},
	{"milling_machine", "hydraulic_pressure"}: {50, 150, 100, 15, "bar"},
	{"milling_machine", "energy_consumption"}: {8, 35, 20, 4, "kW"},

	{"injection_molder", "temperature"}:        {150, 300, 220, 15, "°C"},
	{"injection_molder", "pressure"}:           {50, 200, 120, 20, "bar"},
	{"injection_molder", "cycle_time"}:         {10, 60, 30, 5, "s"},
	{"injection_molder", "energy_consumption"}: {15, 50, 30, 5, "kW"},
	{"injection_molder", "mold_temperature"}:   {20, 80, 50, 8, "°C"},

	{"industrial_robot", "temperature"}:        {30, 70, 45, 5, "°C"},
	{"industrial_robot", "precision"}:          {0.01, 0.5, 0.1, 0.05, "mm"},
	{"industrial_robot", "speed"}:              {10, 100, 50, 10, "%"},
	{"industrial_robot", "energy_consumption"}: {2, 20, 10, 2, "kW"},
	{"industrial_robot", "load"}:               {0, 100, 50, 15, "%"},

	{"compressor", "temperature"}:        {40, 90, 65, 8, "°C"},
	{"compressor", "pressure"}:           {5, 15, 10, 1, "bar"},
	{"compressor", "energy_consumption"}: {10, 40, 25, 5, "kW"},
	{"compressor", "flow_rate"}:          {100, 500, 300, 50, "m³/h"},
	{"compressor", "vibration"}:          {0.1, 2.0, 0.5, 0.2, "mm/s"},
}
