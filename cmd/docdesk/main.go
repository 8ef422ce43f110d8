package main

// @title           Docdesk API
// @version         1.0
// @description     Compliance document desk. Indexes company documents, drafts replies to document requests and lets reviewers approve and send them.

// @contact.name   Custodia Labs
// @contact.url    https://github.com/custodia-labs/docdesk/issues

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8080
// @BasePath  /api/v1
// @schemes   http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Bearer token. Format: "Bearer {token}"

import (
	"os"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
