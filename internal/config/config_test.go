package config

import (
	"os"
	"testing"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	os.Setenv("JWT_SECRET", "test-secret-32-characters-long!")
	os.Setenv("DB_PASSWORD", "test")
	t.Cleanup(os.Clearenv)
}

func TestThrottleConfig_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	tests := []struct {
		name     string
		actual   int64
		expected int64
	}{
		{"BanTimeIP", cfg.Throttle.BanTimeIP, 600},
		{"BanTimeAccount", cfg.Throttle.BanTimeAccount, 3600},
		{"MaxAttemptsIP", int64(cfg.Throttle.MaxAttemptsIP), 30},
		{"MaxAttemptsAccount", int64(cfg.Throttle.MaxAttemptsAccount), 15},
		{"WarningThreshold", int64(cfg.Throttle.WarningThreshold), 10},
	}

	for _, tt := range tests {
		if tt.actual != tt.expected {
			t.Errorf("%s: got %v, want %v", tt.name, tt.actual, tt.expected)
		}
	}
}

func TestThrottleConfig_CustomValues(t *testing.T) {
	setRequiredEnv(t)
	os.Setenv("BAN_TIME_IP", "60")
	os.Setenv("MAX_LOGIN_ATTEMPTS_IP", "5")
	os.Setenv("LOGIN_WARNING_THRESHOLD", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	if cfg.Throttle.BanTimeIP != 60 {
		t.Errorf("BanTimeIP: got %v, want 60", cfg.Throttle.BanTimeIP)
	}
	if cfg.Throttle.MaxAttemptsIP != 5 {
		t.Errorf("MaxAttemptsIP: got %v, want 5", cfg.Throttle.MaxAttemptsIP)
	}
	if cfg.Throttle.WarningThreshold != 3 {
		t.Errorf("WarningThreshold: got %v, want 3", cfg.Throttle.WarningThreshold)
	}
}

func TestThrottleConfig_RejectsNonPositiveLimits(t *testing.T) {
	setRequiredEnv(t)
	os.Setenv("MAX_LOGIN_ATTEMPTS_ACCOUNT", "0")

	if _, err := Load(); err == nil {
		t.Fatal("Load() should reject a zero attempt limit")
	}
}

func TestThrottleConfig_InvalidValueFallsBack(t *testing.T) {
	setRequiredEnv(t)
	os.Setenv("BAN_TIME_IP", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	if cfg.Throttle.BanTimeIP != 600 {
		t.Errorf("BanTimeIP with invalid value: got %v, want default 600", cfg.Throttle.BanTimeIP)
	}
}

func TestServerConfig_TrustedProxiesParsed(t *testing.T) {
	setRequiredEnv(t)
	os.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 192.168.1.0/24")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	want := []string{"10.0.0.0/8", "192.168.1.0/24"}
	if len(cfg.Server.TrustedProxies) != len(want) {
		t.Fatalf("TrustedProxies: got %v, want %v", cfg.Server.TrustedProxies, want)
	}
	for i, cidr := range want {
		if cfg.Server.TrustedProxies[i] != cidr {
			t.Errorf("TrustedProxies[%d]: got %q, want %q", i, cfg.Server.TrustedProxies[i], cidr)
		}
	}
}

func TestServerConfig_TrustedProxiesEmptyByDefault(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	if len(cfg.Server.TrustedProxies) != 0 {
		t.Errorf("TrustedProxies: got %v, want empty", cfg.Server.TrustedProxies)
	}
}

func TestLoad_RequiresJWTSecret(t *testing.T) {
	os.Clearenv()
	os.Setenv("DB_PASSWORD", "test")
	t.Cleanup(os.Clearenv)

	if _, err := Load(); err == nil {
		t.Fatal("Load() should fail without JWT_SECRET")
	}
}

func TestLoad_RejectsShortJWTSecretInProduction(t *testing.T) {
	os.Clearenv()
	os.Setenv("JWT_SECRET", "short-but-over-16ch")
	os.Setenv("DB_PASSWORD", "test")
	os.Setenv("ENV", "production")
	t.Cleanup(os.Clearenv)

	if _, err := Load(); err == nil {
		t.Fatal("Load() should reject a short JWT_SECRET in production")
	}
}
