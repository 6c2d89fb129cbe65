// Standalone fake status pages for trying the CLI.
//
// Usage:
//
//	go run ./example/cmd/mockstatus
//
// Then in another terminal:
//
//	go run ./cmd/statuswatch serve -c example/config.yaml
package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/jpalmerr/statuswatch/example/mockstatus"
)

func main() {
	fmt.Println("Mock status pages starting on :9999")
	fmt.Println("  /acme/api/v2/...    scripted incident, 20-60s per step")
	fmt.Println("  /globex/api/v2/...  scripted incident, 20-60s per step")
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	clock := clockwork.NewRealClock()
	mux := http.NewServeMux()
	for _, name := range []string{"acme", "globex"} {
		page := mockstatus.NewPage(name, clock, 20*time.Second, 60*time.Second, slog.Default())
		mux.Handle("/"+name+"/", http.StripPrefix("/"+name, page))
	}

	if err := http.ListenAndServe(":9999", mux); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
