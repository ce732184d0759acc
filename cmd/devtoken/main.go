// Command devtoken prints a bearer token for local testing against a server
// sharing the same JWT_SECRET.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/clinicbook/backend/internal/domain/entities"
	"github.com/clinicbook/backend/pkg/auth"
	"github.com/clinicbook/backend/pkg/config"
)

func main() {
	var uid, role string
	var ttl time.Duration

	flag.StringVar(&uid, "uid", "", "User ID to embed (random UUID when empty)")
	flag.StringVar(&role, "role", string(entities.RolePatient), "Role: patient, doctor or staff")
	flag.DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")
	flag.Parse()

	switch entities.Role(role) {
	case entities.RolePatient, entities.RoleDoctor, entities.RoleStaff:
	default:
		fmt.Fprintf(os.Stderr, "unknown role %q\n", role)
		os.Exit(2)
	}

	cfg := config.FromEnv()
	if cfg.Auth.JWTSecret == "" {
		fmt.Fprintln(os.Stderr, "JWT_SECRET is required")
		os.Exit(1)
	}

	if uid == "" {
		uid = uuid.NewString()
	}

	token, err := auth.Sign(cfg.Auth.JWTSecret, uid, role, time.Now(), ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to sign token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
