// cmd/main.go
package main

import (
	"go-trip-api/app"
)

// @title           Go-Trip API
// @version         1.0
// @description     Trip planning API. This document covers authentication and session management.

// @contact.name   API Support
// @contact.email  support@example.com

// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT

// @host      localhost:8080
// @BasePath  /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	app.Run()
}
