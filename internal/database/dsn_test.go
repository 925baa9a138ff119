package database

import (
	"strings"
	"testing"
)

func TestBuildPostgresDSNDefaults(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{
		User: "estatevest",
		Name: "estatevest",
	})
	if err != nil {
		t.Fatalf("build dsn: %v", err)
	}

	expected := "host=localhost port=5432 user=estatevest dbname=estatevest TimeZone=UTC sslmode=disable"
	if dsn != expected {
		t.Fatalf("expected %q, got %q", expected, dsn)
	}
}

func TestBuildPostgresDSNWithOptions(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{
		User:     "user",
		Name:     "db",
		Host:     "db.example.com",
		Port:     6543,
		Password: "pass",
		Options: map[string]string{
			"sslmode":     "require",
			"search_path": "public",
		},
	})
	if err != nil {
		t.Fatalf("build dsn: %v", err)
	}

	if !containsAll(dsn,
		"host=db.example.com",
		"port=6543",
		"user=user",
		"dbname=db",
		"password=pass",
		"sslmode=require",
		"search_path=public",
	) {
		t.Fatalf("dsn missing expected components: %q", dsn)
	}
}

func TestBuildPostgresDSNRequiresUserAndName(t *testing.T) {
	if _, err := buildPostgresDSN(Config{}); err == nil {
		t.Fatalf("expected error for missing credentials")
	}
}

func TestBuildMySQLDSNDefaults(t *testing.T) {
	dsn, err := buildMySQLDSN(Config{
		User: "estatevest",
		Name: "estatevest",
	})
	if err != nil {
		t.Fatalf("build dsn: %v", err)
	}

	expected := "estatevest@tcp(127.0.0.1:3306)/estatevest?charset=utf8mb4&loc=UTC&parseTime=True"
	if dsn != expected {
		t.Fatalf("expected %q, got %q", expected, dsn)
	}
}

func TestBuildMySQLDSNWithPasswordAndOverride(t *testing.T) {
	dsn, err := buildMySQLDSN(Config{
		User:     "user",
		Password: "secret",
		Name:     "db",
		Host:     "db.example.com",
		Port:     3307,
		Options:  map[string]string{"loc": "Local"},
	})
	if err != nil {
		t.Fatalf("build dsn: %v", err)
	}

	if !containsAll(dsn, "user:secret@tcp(db.example.com:3307)/db?", "loc=Local", "parseTime=True") {
		t.Fatalf("dsn missing expected components: %q", dsn)
	}
}

func TestBuildDSNUsesExplicitOverride(t *testing.T) {
	pg, err := buildPostgresDSN(Config{DSN: "postgres://custom"})
	if err != nil || pg != "postgres://custom" {
		t.Fatalf("expected override dsn, got %q (%v)", pg, err)
	}
	my, err := buildMySQLDSN(Config{DSN: "custom@tcp(db)/x"})
	if err != nil || my != "custom@tcp(db)/x" {
		t.Fatalf("expected override dsn, got %q (%v)", my, err)
	}
}

func containsAll(value string, parts ...string) bool {
	for _, part := range parts {
		if !strings.Contains(value, part) {
			return false
		}
	}
	return true
}
