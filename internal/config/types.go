package config

import "codeberg.org/wavelink/server/internal/realtime"

// holds all application-wide configuration loaded from environment
// variables
type Config struct {
	Environment string
	Port        string
	JWTSecret   string
	Realtime    realtime.Config
}
