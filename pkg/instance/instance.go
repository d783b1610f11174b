package instance

import (
	"os"
	"sync"

	"github.com/google/uuid"
)

var (
	once     sync.Once
	fallback string
)

// GetID returns the process identifier recorded on distributed locks and
// publisher logs. CLUBLEDGER_INSTANCE_ID wins, then the hostname, then a
// random id generated once per process.
func GetID() string {
	if id := os.Getenv("CLUBLEDGER_INSTANCE_ID"); id != "" {
		return id
	}
	once.Do(func() {
		if host, err := os.Hostname(); err == nil && host != "" {
			fallback = host
			return
		}
		fallback = "instance-" + uuid.NewString()[:8]
	})
	return fallback
}
