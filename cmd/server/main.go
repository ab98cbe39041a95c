package main

import (
	"os"

	"docdash/internal/app"
)

// @title        docdash chat API
// @version      1.0
// @description  Conversations and streamed assistant replies for the docdash dashboard.
// @BasePath     /api
func main() {
	os.Exit(app.Run())
}
