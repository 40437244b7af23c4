// Package config loads service configuration from an optional YAML file,
// then lets environment variables override individual fields. Environment
// always wins so container deployments can tweak a baked-in file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"drtnav/internal/model"
)

type OSRM struct {
	BaseURL      string  `yaml:"baseUrl"`
	RateLimitRPS float64 `yaml:"rateLimitRps"`
	TimeoutSec   int     `yaml:"timeoutSec"`
}

type Remote struct {
	URL        string `yaml:"url"`
	TimeoutSec int    `yaml:"timeoutSec"`
}

type Dispatch struct {
	MaxWaitMinutes   int `yaml:"maxWaitMinutes"`
	MaxTravelMinutes int `yaml:"maxTravelMinutes"`
	VehicleLimit     int `yaml:"vehicleLimit"`
}

type Notify struct {
	Endpoints []string `yaml:"endpoints"`
	Secret    string   `yaml:"secret"`
}

type Config struct {
	HTTPAddr      string   `yaml:"httpAddr"`
	DatabaseURL   string   `yaml:"databaseUrl"`
	RedisURL      string   `yaml:"redisUrl"`
	OSRM          OSRM     `yaml:"osrm"`
	Remote        Remote   `yaml:"remote"`
	Dispatch      Dispatch `yaml:"dispatch"`
	Notify        Notify   `yaml:"notify"`
	GTFSStopsFile string   `yaml:"gtfsStopsFile"`
	RequestsFile  string   `yaml:"requestsFile"`
}

// Defaults returns the zero configuration with usable local defaults.
func Defaults() Config {
	return Config{
		HTTPAddr: ":8080",
		OSRM:     OSRM{TimeoutSec: 10},
		Remote:   Remote{TimeoutSec: 15},
		Dispatch: Dispatch{MaxWaitMinutes: 15, MaxTravelMinutes: 20, VehicleLimit: 3},
	}
}

// Load reads CONFIG_FILE when set (missing file is an error; an unset
// variable is not), then applies environment overrides.
func Load() (Config, error) {
	cfg := Defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.HTTPAddr, "HTTP_ADDR")
	setString(&c.DatabaseURL, "DATABASE_URL")
	setString(&c.RedisURL, "REDIS_URL")
	setString(&c.OSRM.BaseURL, "OSRM_BASE_URL")
	setFloat(&c.OSRM.RateLimitRPS, "OSRM_RATE_LIMIT_RPS")
	setInt(&c.OSRM.TimeoutSec, "OSRM_TIMEOUT_SEC")
	setString(&c.Remote.URL, "ROUTE_CALC_URL")
	setInt(&c.Remote.TimeoutSec, "ROUTE_CALC_TIMEOUT_SEC")
	setInt(&c.Dispatch.MaxWaitMinutes, "MAX_WAIT_MINUTES")
	setInt(&c.Dispatch.MaxTravelMinutes, "MAX_TRAVEL_MINUTES")
	setInt(&c.Dispatch.VehicleLimit, "VEHICLE_LIMIT")
	setString(&c.Notify.Secret, "WEBHOOK_SECRET")
	if v := os.Getenv("WEBHOOK_ENDPOINTS"); v != "" {
		c.Notify.Endpoints = nil
		for _, e := range strings.Split(v, ",") {
			if e = strings.TrimSpace(e); e != "" {
				c.Notify.Endpoints = append(c.Notify.Endpoints, e)
			}
		}
	}
	setString(&c.GTFSStopsFile, "GTFS_STOPS_FILE")
	setString(&c.RequestsFile, "REQUESTS_FILE")
}

// DispatchParams maps the configured defaults onto run parameters.
func (c Config) DispatchParams() model.RunParams {
	return model.RunParams{
		MaxWaitMinutes:   c.Dispatch.MaxWaitMinutes,
		MaxTravelMinutes: c.Dispatch.MaxTravelMinutes,
		VehicleLimit:     c.Dispatch.VehicleLimit,
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}
