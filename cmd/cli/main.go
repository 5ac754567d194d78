package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/yourorg/parcfleet/internal/domain"
	"github.com/yourorg/parcfleet/internal/infrastructure/logger"
	"github.com/yourorg/parcfleet/internal/repository"
	"github.com/yourorg/parcfleet/internal/security/auth"
	"github.com/yourorg/parcfleet/internal/security/rbac"
	"github.com/yourorg/parcfleet/pkg/config"
	"github.com/yourorg/parcfleet/pkg/database"
)

// permissionResources is the catalog seeded for every tenant. Each resource
// gets one permission per action.
var permissionResources = []string{
	"lubrifiant",
	"type_lubrifiant",
	"parc",
	"role",
	"permission",
	"user",
}

var permissionActions = []string{
	rbac.ActionRead,
	rbac.ActionCreate,
	rbac.ActionUpdate,
	rbac.ActionDelete,
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "seed-permissions":
		seedPermissions(args)
	case "create-super-admin":
		createSuperAdmin(args)
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// seedPermissions inserts the permission catalog for one tenant, or for every
// tenant with -all. Safe to run repeatedly.
func seedPermissions(args []string) {
	fs := flag.NewFlagSet("seed-permissions", flag.ExitOnError)
	tenantName := fs.String("tenant", "", "tenant name")
	all := fs.Bool("all", false, "seed every tenant")
	fs.Parse(args)

	if *tenantName == "" && !*all {
		fmt.Println("Error: -tenant or -all is required")
		fs.PrintDefaults()
		os.Exit(1)
	}

	ctx, _, db, cleanup := connect()
	defer cleanup()

	tenantRepo := repository.NewPostgresTenantRepository(db.GetDB(), nil)
	permissionRepo := repository.NewPostgresPermissionRepository(db.GetDB(), nil)
	statsRepo := repository.NewPostgresStatsRepository(db.GetDB(), nil)

	var tenantIDs []string
	if *all {
		ids, err := statsRepo.ListTenantIDs(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		tenantIDs = ids
	} else {
		tenant, err := tenantRepo.GetByName(ctx, *tenantName)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: tenant %q: %v\n", *tenantName, err)
			os.Exit(1)
		}
		tenantIDs = []string{tenant.ID}
	}

	catalog := make([]domain.Permission, 0, len(permissionResources)*len(permissionActions))
	for _, resource := range permissionResources {
		for _, action := range permissionActions {
			catalog = append(catalog, domain.Permission{Resource: resource, Action: action})
		}
	}

	for _, tenantID := range tenantIDs {
		inserted, err := permissionRepo.Seed(ctx, tenantID, catalog)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error seeding tenant %s: %v\n", tenantID, err)
			os.Exit(1)
		}
		fmt.Printf("✓ Tenant %s: %d permission(s) ajoutée(s), %d déjà présentes\n",
			tenantID, inserted, len(catalog)-inserted)
	}
}

// createSuperAdmin creates a global super admin inside the given tenant.
// Idempotent: an existing email leaves the account untouched.
func createSuperAdmin(args []string) {
	fs := flag.NewFlagSet("create-super-admin", flag.ExitOnError)
	tenantName := fs.String("tenant", "", "tenant name")
	email := fs.String("email", "", "admin email")
	name := fs.String("name", "", "admin display name")
	password := fs.String("password", "", "admin password")
	fs.Parse(args)

	if *tenantName == "" || *email == "" || *name == "" || *password == "" {
		fmt.Println("Error: tenant, email, name, and password are required")
		fs.PrintDefaults()
		os.Exit(1)
	}
	if len(*password) < 6 {
		fmt.Println("Error: le mot de passe doit contenir au moins 6 caractères")
		os.Exit(1)
	}

	ctx, cfg, db, cleanup := connect()
	defer cleanup()

	tenantRepo := repository.NewPostgresTenantRepository(db.GetDB(), nil)
	userRepo := repository.NewPostgresUserRepository(db.GetDB(), nil)

	tenant, err := tenantRepo.GetByName(ctx, *tenantName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: tenant %q: %v\n", *tenantName, err)
		os.Exit(1)
	}

	exists, err := userRepo.EmailExists(ctx, tenant.ID, *email)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if exists {
		fmt.Println("Super admin est déjà créé")
		return
	}

	hasher := auth.NewHasher(cfg.BcryptCost)
	hash, err := hasher.Hash(*password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	user := &domain.User{
		TenantID:     tenant.ID,
		Email:        *email,
		Name:         *name,
		PasswordHash: hash,
		Active:       true,
		IsSuperAdmin: true,
	}
	if err := userRepo.Create(ctx, user, nil); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✓ Super admin créé avec succès (id: %s)\n", user.ID)
}

func connect() (context.Context, *config.Config, *database.ConnectionPool, func()) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger("warn")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)

	db, err := database.NewConnectionPool(ctx, &database.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		Database: cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	}, log)
	if err != nil {
		cancel()
		fmt.Fprintf(os.Stderr, "failed to connect to database: %v\n", err)
		os.Exit(1)
	}

	return ctx, cfg, db, func() {
		db.Close()
		cancel()
	}
}

func printUsage() {
	fmt.Print(`ParcFleet CLI

Usage:
  parcfleet <command> [options]

Commands:
  seed-permissions    Seed the permission catalog (-tenant <name> | -all)
  create-super-admin  Create a global super admin (-tenant, -email, -name, -password)
  help                Show this help message

Environment Variables:
  DB_HOST, DB_PORT, DB_USER, DB_PASSWORD, DB_NAME, DB_SSLMODE

Examples:
  parcfleet seed-permissions -tenant acme
  parcfleet seed-permissions -all
  parcfleet create-super-admin -tenant acme -email admin@acme.fr -name Admin -password secret123
`)
}
