package config

import (
	"reflect"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("RENTAL_FIREBASE_PROJECT_ID", "rental-test")
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HTTP.Addr != ":8080" || cfg.Store.Mode != StorePostgres || cfg.Payments.Timeout != 10*time.Second {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.Suggestions.Max != 3 || cfg.Suggestions.HorizonDays != 90 {
		t.Fatalf("unexpected suggestion defaults %+v", cfg.Suggestions)
	}
	if cfg.Maps.APIKey != "" || cfg.Maps.Region != "us" {
		t.Fatalf("unexpected maps defaults %+v", cfg.Maps)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("RENTAL_FIREBASE_PROJECT_ID", "rental-test")
	t.Setenv("RENTAL_STORE", "Memory")
	t.Setenv("RENTAL_CORS_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("RENTAL_PAYMENTS_TIMEOUT", "3s")
	t.Setenv("RENTAL_SUGGESTIONS_MAX", "not-a-number")
	t.Setenv("RENTAL_FCM_NOTIFICATIONS", "true")
	t.Setenv("RENTAL_GOOGLE_MAPS_API_KEY", "maps-key")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Store.Mode != StoreMemory {
		t.Fatalf("store = %q", cfg.Store.Mode)
	}
	if want := []string{"https://a.example", "https://b.example"}; !reflect.DeepEqual(cfg.HTTP.CORSOrigins, want) {
		t.Fatalf("origins = %v", cfg.HTTP.CORSOrigins)
	}
	if cfg.Payments.Timeout != 3*time.Second || cfg.Suggestions.Max != 3 || !cfg.Firebase.Notifications {
		t.Fatalf("unexpected overrides %+v", cfg)
	}
	if cfg.Maps.APIKey != "maps-key" {
		t.Fatalf("maps key = %q", cfg.Maps.APIKey)
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Setenv("RENTAL_FIREBASE_PROJECT_ID", "")
	if _, err := Load(); err == nil {
		t.Fatal("missing project id must fail")
	}
	t.Setenv("RENTAL_FIREBASE_PROJECT_ID", "rental-test")
	t.Setenv("RENTAL_STORE", "mongo")
	if _, err := Load(); err == nil {
		t.Fatal("unknown store mode must fail")
	}
}
