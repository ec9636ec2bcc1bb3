// Command travelctl runs the listing, coordinate and exchange rate lookups from a shell.
package main

import (
	"os"

	"github.com/dalfonso89/travel-assistant-api/internal/config"
)

func main() {
	if err := newRootCommand(config.Load).Execute(); err != nil {
		os.Exit(1)
	}
}
