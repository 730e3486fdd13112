package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// EnvName selects the deployment environment; production skips .env files.
const EnvName = "ERH_ENV"

// LoadDotenvIfPresent reads a local .env file for development use. Existing
// environment variables win and a missing file is a no-op.
func LoadDotenvIfPresent(path string, log logrus.FieldLogger) {
	if strings.EqualFold(os.Getenv(EnvName), "production") {
		return
	}
	if path == "" {
		path = ".env"
	}

	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			log.WithError(err).Warn("dotenv stat failed")
		}
		return
	}

	if err := godotenv.Load(path); err != nil {
		log.WithError(err).Warn("dotenv load failed")
	}
}
