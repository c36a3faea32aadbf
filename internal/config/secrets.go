package config

import (
	"fmt"
	"os"
	"strings"
)

// ResolveSecret returns the secret named by envName. A path in
// envName_FILE wins over the plain variable; file contents are trimmed.
// Neither being set yields "".
func ResolveSecret(envName string) (string, error) {
	fileEnv := envName + "_FILE"
	if path := os.Getenv(fileEnv); path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("failed to read secret from %s=%s: %w", fileEnv, path, err)
		}
		return strings.TrimSpace(string(content)), nil
	}
	return os.Getenv(envName), nil
}
