package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"stax/internal/config"
	"stax/internal/database"

	"golang.org/x/term"
)

// Default timeout for database operations
const defaultTimeout = 30 * time.Second

// passwordReader reads a password without echo. Tests replace it.
var passwordReader = func() ([]byte, error) {
	return term.ReadPassword(int(os.Stdin.Fd()))
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	db, err := database.New(ctx, cfg.DBPath, cfg.DatabaseOptions())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to open catalog: %v\n", err)
		fmt.Fprintf(os.Stderr, "Make sure STAX_DB_PATH is set correctly (current: %s)\n", cfg.DBPath)
		os.Exit(1)
	}

	ok := true
	switch command {
	case "create":
		if len(os.Args) < 3 {
			printUsage()
			os.Exit(1)
		}
		role := database.RoleUser
		if len(os.Args) > 3 && os.Args[3] == "--admin" {
			role = database.RoleAdmin
		}
		ok = createUser(ctx, db, os.Args[2], role)
	case "reset":
		if len(os.Args) < 3 {
			printUsage()
			os.Exit(1)
		}
		ok = resetPassword(ctx, db, os.Args[2])
	case "status":
		ok = showStatus(ctx, db, os.Stdout)
	default:
		// Sanitize command input using allowlist to break taint chain
		sanitized := sanitizeCommand(command)
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", sanitized) //nolint:gosec // G705 - input is sanitized via allowlist in sanitizeCommand; only [a-zA-Z0-9_-] characters pass through
		printUsage()
		ok = false
	}
	if !ok {
		os.Exit(1)
	}
}

// sanitizeCommand returns a safe representation of a command string for display.
// It uses an allowlist approach, replacing any character that is not alphanumeric,
// a hyphen, or an underscore with '_'.
func sanitizeCommand(cmd string) string {
	var b strings.Builder
	b.Grow(len(cmd))
	for _, r := range cmd {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

func printUsage() {
	fmt.Println("StaX Password Management")
	fmt.Println("")
	fmt.Println("Usage: resetpw <command> [user]")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  create <user> [--admin] - Create a catalog user")
	fmt.Println("  reset <user>            - Reset a user's password")
	fmt.Println("  status                  - List users and their state")
	fmt.Println("")
	fmt.Println("Environment:")
	fmt.Printf("  STAX_DB_PATH - Path to the catalog database (default: %s)\n", config.DefaultDBPath)
}

// promptPassword asks for a password twice and validates it.
func promptPassword() (string, error) {
	fmt.Print("New Password: ")
	password, err := passwordReader()
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}

	fmt.Print("Confirm Password: ")
	confirm, err := passwordReader()
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}

	if !bytes.Equal(password, confirm) {
		return "", errors.New("passwords do not match")
	}
	if len(password) < database.MinPasswordLength {
		return "", fmt.Errorf("password must be at least %d characters", database.MinPasswordLength)
	}
	return string(password), nil
}

func createUser(ctx context.Context, db *database.Database, username string, role database.Role) bool {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	existing, err := db.GetUserByUsername(ctx, username)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return false
	}
	if existing != nil {
		fmt.Fprintf(os.Stderr, "Error: User %q already exists. Use reset to change the password.\n", username)
		return false
	}

	password, err := promptPassword()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return false
	}

	id, err := db.CreateUser(ctx, username, password, role, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to create user: %v\n", err)
		return false
	}

	fmt.Printf("Created %s user %q (id %d).\n", role, username, id)
	return true
}

func resetPassword(ctx context.Context, db *database.Database, username string) bool {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	user, err := db.GetUserByUsername(ctx, username)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return false
	}
	if user == nil {
		fmt.Fprintf(os.Stderr, "Error: No user named %q. Use create to add one.\n", username)
		return false
	}

	password, err := promptPassword()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return false
	}

	if _, err := db.ChangeUserPassword(ctx, user.ID, password); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to update password: %v\n", err)
		return false
	}

	fmt.Println("Password updated successfully.")
	fmt.Println("All existing sessions have been invalidated.")
	return true
}

func showStatus(ctx context.Context, db *database.Database, w io.Writer) bool {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	version, dirty, latest, err := db.SchemaVersion(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return false
	}
	fmt.Fprintf(w, "Catalog: %s (schema v%d of v%d", db.Path(), version, latest)
	if dirty {
		fmt.Fprint(w, ", dirty")
	}
	fmt.Fprintln(w, ")")

	users, err := db.GetAllUsers(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return false
	}
	if len(users) == 0 {
		fmt.Fprintln(w, "Status: No users configured (run: resetpw create <user>)")
		return true
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "USER\tROLE\tACTIVE\tLAST LOGIN")
	for _, u := range users {
		last := "never"
		if u.LastLogin != nil {
			last = u.LastLogin.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(tw, "%s\t%s\t%v\t%s\n", u.Username, u.Role, u.IsActive, last)
	}
	return tw.Flush() == nil
}
