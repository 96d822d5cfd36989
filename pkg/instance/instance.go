package instance

import (
	"os"
	"strings"

	"github.com/angelmondragon/atelier-backend/pkg/env"
)

const fallbackID = "worker-0"

// GetID identifies this process among replicas: ATELIER_WORKER_ID when set,
// otherwise the hostname.
func GetID() string {
	if id := env.Get("ATELIER_WORKER_ID", ""); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && strings.TrimSpace(host) != "" {
		return strings.TrimSpace(host)
	}
	return fallbackID
}
