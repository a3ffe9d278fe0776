// Command token prints a bearer token for local testing.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/auth"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/config"
	"github.com/frnonato-lgtm/Pharmacy-Management-System-sub000/internal/session"
)

func main() {
	userID := flag.Int64("user", 1, "user id")
	role := flag.String("role", string(session.RolePatient), "patient, pharmacist, clerk, admin or system")
	ttl := flag.Duration("ttl", auth.DefaultTTL, "token lifetime")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	issuer, err := auth.NewIssuer(cfg.JWTSecret, *ttl)
	if err != nil {
		log.Fatalf("auth: %v", err)
	}
	token, err := issuer.Issue(session.Actor{UserID: *userID, Role: session.Role(*role)})
	if err != nil {
		log.Fatalf("issue: %v", err)
	}
	fmt.Println(token)
}
