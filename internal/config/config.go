// Package config loads the daemon configuration from a JSON file, applies
// environment overrides and fills in defaults.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"whatsauto/internal/constants"
	"whatsauto/internal/models"
)

var ErrMissingDriver = models.ConfigError{Message: "missing transport driver"}

func LoadConfig(path string) (*models.Config, error) {
	file, err := os.ReadFile(path) // #nosec G304 - path comes from the operator's command line
	if err != nil {
		return nil, err
	}

	var config models.Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	applyEnvironmentOverrides(&config)

	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func validate(c *models.Config) error {
	if c.Transport.Driver == "" {
		return ErrMissingDriver
	}

	// An empty sessions array is fine: previously paired sessions are
	// resumed from the credential store at startup.
	seen := make(map[string]bool)
	for i := range c.Sessions {
		entry := &c.Sessions[i]
		if entry.ID == "" {
			return models.ConfigError{Message: fmt.Sprintf("empty session id at index %d", i)}
		}
		if seen[entry.ID] {
			return models.ConfigError{Message: fmt.Sprintf("duplicate session id: %s", entry.ID)}
		}
		seen[entry.ID] = true

		// Pairing-code login suppresses the QR flow; sessions without a
		// phone number can only authenticate by QR.
		if entry.Config.PhoneNumber == "" {
			entry.Config.PrintQR = true
		}
		if entry.Config.StickerPack == "" {
			entry.Config.StickerPack = constants.DefaultStickerPack
		}
		if entry.Config.StickerAuthor == "" {
			entry.Config.StickerAuthor = constants.DefaultStickerAuthor
		}
	}

	if c.Creds.Dir == "" {
		c.Creds.Dir = constants.DefaultCredsDirName
	}

	if c.Archive.Enabled && c.Archive.Path == "" {
		return models.ConfigError{Message: "archive path is required when the archive is enabled"}
	}
	if c.Archive.RetentionDays <= 0 {
		c.Archive.RetentionDays = 30
	}

	if c.Retry.MaxReconnectAttempts <= 0 {
		c.Retry.MaxReconnectAttempts = constants.DefaultMaxReconnectAttempts
	}
	if c.Retry.ReconnectDelaySec <= 0 {
		c.Retry.ReconnectDelaySec = constants.DefaultReconnectDelaySec
	}
	if c.Retry.MaxPairingAttempts <= 0 {
		c.Retry.MaxPairingAttempts = constants.DefaultMaxPairingAttempts
	}
	if c.Retry.PairingRetryDelaySec <= 0 {
		c.Retry.PairingRetryDelaySec = constants.DefaultPairingRetryDelaySec
	}

	if c.Server.Port <= 0 {
		c.Server.Port = constants.DefaultServerPort
	}
	if c.Server.ReadTimeoutSec <= 0 {
		c.Server.ReadTimeoutSec = constants.DefaultServerReadTimeoutSec
	}
	if c.Server.WriteTimeoutSec <= 0 {
		c.Server.WriteTimeoutSec = constants.DefaultServerWriteTimeoutSec
	}
	if c.Server.IdleTimeoutSec <= 0 {
		c.Server.IdleTimeoutSec = constants.DefaultServerIdleTimeoutSec
	}

	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	return nil
}

func applyEnvironmentOverrides(c *models.Config) {
	if driver := os.Getenv("WHATSAUTO_TRANSPORT_DRIVER"); driver != "" {
		c.Transport.Driver = driver
	}
	if dir := os.Getenv("WHATSAUTO_CREDS_DIR"); dir != "" {
		c.Creds.Dir = dir
	}
	if path := os.Getenv("WHATSAUTO_ARCHIVE_PATH"); path != "" {
		c.Archive.Path = path
	}
	if port := os.Getenv("WHATSAUTO_SERVER_PORT"); port != "" {
		if parsed, err := strconv.Atoi(port); err == nil {
			c.Server.Port = parsed
		}
	}
	if level := os.Getenv("WHATSAUTO_LOG_LEVEL"); level != "" {
		c.LogLevel = level
	}
}
