package config

import (
	"fmt"
	"os"
	"strings"
)

// Environment variables holding credentials. Each also accepts a *_FILE
// variant pointing at a mounted secret.
const (
	EnvPostgresPassword = "PGPASSWORD"
	EnvMQTTPassword     = "MQTT_PASSWORD"
	EnvOperatorPassword = "GRIDRUNNER_OPERATOR_PASS"
)

// ResolveSecret reads envName using the *_FILE convention. The file variant
// wins when both are set. File contents are trimmed; an unset secret
// resolves to "".
func ResolveSecret(envName string) (string, error) {
	fileEnv := envName + "_FILE"
	if filePath := os.Getenv(fileEnv); filePath != "" {
		content, err := os.ReadFile(filePath)
		if err != nil {
			return "", fmt.Errorf("read secret %s: %w", fileEnv, err)
		}
		return strings.TrimSpace(string(content)), nil
	}
	return os.Getenv(envName), nil
}

// Secrets holds every credential the process may need.
type Secrets struct {
	PostgresPassword string
	MQTTPassword     string
	OperatorPassword string
}

// LoadSecrets resolves all known secrets. The first unreadable file aborts.
func LoadSecrets() (Secrets, error) {
	var s Secrets
	targets := []struct {
		env string
		dst *string
	}{
		{EnvPostgresPassword, &s.PostgresPassword},
		{EnvMQTTPassword, &s.MQTTPassword},
		{EnvOperatorPassword, &s.OperatorPassword},
	}
	for _, t := range targets {
		v, err := ResolveSecret(t.env)
		if err != nil {
			return Secrets{}, err
		}
		*t.dst = v
	}
	return s, nil
}
