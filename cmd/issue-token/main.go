package main

import (
	"flag"
	"fmt"
	"os"

	"foodorder/internal/config"
	"foodorder/internal/identity"
	"foodorder/internal/model"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	role := flag.String("role", string(model.RoleCustomer), "Customer, Employee, Deliveryman or Admin")
	id := flag.String("id", "", "stable account id")
	branch := flag.String("branch", "", "branch id (employees only)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	token, err := identity.NewJWT(cfg.Auth).Issue(model.Principal{
		Role:     model.Role(*role),
		ID:       *id,
		BranchID: *branch,
	})
	if err != nil {
		return fmt.Errorf("failed to issue token: %w", err)
	}

	fmt.Println(token)
	return nil
}
