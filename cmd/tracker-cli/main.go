package main

import (
	"os"

	"ordertrack-backend/cmd/tracker-cli/cmd"
)

func main() {
	baseUrl, ok := os.LookupEnv("TRACKER_BASE_URL")
	if !ok {
		baseUrl = "http://localhost:8450"
	}
	cmd.BaseUrl = baseUrl

	cmd.Execute()
}
