// Command admin-token mints a bearer token for the /api/admin endpoints.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	appconfig "github.com/wolfman30/bloodlab-platform/internal/config"
	httpmiddleware "github.com/wolfman30/bloodlab-platform/internal/http/middleware"
)

func main() {
	subject := flag.String("sub", "admin", "token subject")
	ttl := flag.Duration("ttl", 12*time.Hour, "token lifetime")
	flag.Parse()

	cfg := appconfig.Load()
	if cfg.AdminJWTSecret == "" {
		log.Fatal("ADMIN_JWT_SECRET is required")
	}
	token, err := httpmiddleware.IssueAdminToken(cfg.AdminJWTSecret, *subject, *ttl, time.Now())
	if err != nil {
		log.Fatalf("issue token: %v", err)
	}
	fmt.Println(token)
}
