package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewChecker(t *testing.T) {
	checker := NewChecker("stt", func(ctx context.Context) CheckResult {
		return CheckResult{Status: StatusHealthy, Message: "connected"}
	})

	if checker.Name() != "stt" {
		t.Errorf("Name() = %v, want stt", checker.Name())
	}
	result := checker.Check(context.Background())
	if result.Status != StatusHealthy || result.Message != "connected" {
		t.Errorf("Check() = %+v", result)
	}
}

func TestRegistry_RegisterAndCheck(t *testing.T) {
	registry := NewRegistry("overlay", "1.0.0")
	registry.RegisterFunc("store", func(ctx context.Context) CheckResult {
		return CheckResult{Status: StatusHealthy}
	})
	registry.RegisterFunc("capture", func(ctx context.Context) CheckResult {
		return CheckResult{Status: StatusHealthy}
	})

	report := registry.Check(context.Background())

	if report.Service != "overlay" || report.Version != "1.0.0" {
		t.Errorf("report identity = %s/%s", report.Service, report.Version)
	}
	if report.Status != StatusHealthy {
		t.Errorf("Status = %v, want healthy", report.Status)
	}
	if len(report.Checks) != 2 {
		t.Fatalf("Checks count = %v, want 2", len(report.Checks))
	}
	if report.Checks[0].Name != "capture" || report.Checks[1].Name != "store" {
		t.Errorf("checks not sorted by name: %s, %s", report.Checks[0].Name, report.Checks[1].Name)
	}
}

func TestRegistry_Unregister(t *testing.T) {
	registry := NewRegistry("overlay", "1.0.0")
	registry.RegisterFunc("temp", func(ctx context.Context) CheckResult {
		return CheckResult{Status: StatusHealthy}
	})
	registry.Unregister("temp")

	if n := len(registry.Check(context.Background()).Checks); n != 0 {
		t.Errorf("Checks count = %v, want 0", n)
	}
}

func TestRegistry_OverallStatus(t *testing.T) {
	tests := []struct {
		name     string
		statuses []Status
		want     Status
	}{
		{"all healthy", []Status{StatusHealthy, StatusHealthy}, StatusHealthy},
		{"degraded wins over healthy", []Status{StatusHealthy, StatusDegraded}, StatusDegraded},
		{"unhealthy wins", []Status{StatusDegraded, StatusUnhealthy}, StatusUnhealthy},
		{"empty", nil, StatusHealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := NewRegistry("overlay", "1.0.0")
			for i, s := range tt.statuses {
				status := s
				registry.RegisterFunc(string(rune('a'+i)), func(ctx context.Context) CheckResult {
					return CheckResult{Status: status}
				})
			}
			if got := registry.Check(context.Background()).Status; got != tt.want {
				t.Errorf("Status = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRegistry_EmptyStatusIsUnknown(t *testing.T) {
	registry := NewRegistry("overlay", "1.0.0")
	registry.RegisterFunc("silent", func(ctx context.Context) CheckResult { return CheckResult{} })

	report := registry.CheckWithTimeout(time.Second)
	if report.Checks[0].Status != StatusUnknown {
		t.Errorf("Status = %v, want unknown", report.Checks[0].Status)
	}
	if report.Checks[0].Name != "silent" {
		t.Errorf("Name = %v, want silent", report.Checks[0].Name)
	}
}

func TestRegistry_ConcurrentChecks(t *testing.T) {
	registry := NewRegistry("overlay", "1.0.0")
	var counter int32

	for i := 0; i < 5; i++ {
		registry.RegisterFunc("check"+string(rune('A'+i)), func(ctx context.Context) CheckResult {
			atomic.AddInt32(&counter, 1)
			time.Sleep(10 * time.Millisecond)
			return CheckResult{Status: StatusHealthy}
		})
	}

	start := time.Now()
	report := registry.Check(context.Background())
	duration := time.Since(start)

	if atomic.LoadInt32(&counter) != 5 {
		t.Errorf("Counter = %v, want 5", counter)
	}
	if duration > 200*time.Millisecond {
		t.Errorf("Duration = %v, expected concurrent execution", duration)
	}
	if len(report.Checks) != 5 {
		t.Errorf("Checks count = %v, want 5", len(report.Checks))
	}
}

func TestHandler(t *testing.T) {
	registry := NewRegistry("overlay", "1.0.0")
	registry.Register(ConfiguredCheck("stt_key", "", "no speech key"))

	rec := httptest.NewRecorder()
	registry.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("degraded status code = %d, want 200", rec.Code)
	}
	var report Report
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.Status != StatusDegraded {
		t.Errorf("Status = %v, want degraded", report.Status)
	}

	registry.Register(FlagCheck("capture", func() bool { return false }, StatusUnhealthy, "stopped"))
	rec = httptest.NewRecorder()
	registry.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("unhealthy status code = %d, want 503", rec.Code)
	}
}

func TestCommonChecks(t *testing.T) {
	ctx := context.Background()

	if r := ConfiguredCheck("key", "abc", "missing").Check(ctx); r.Status != StatusHealthy {
		t.Errorf("ConfiguredCheck with value = %v", r.Status)
	}
	if r := FlagCheck("on", func() bool { return true }, StatusDegraded, "off").Check(ctx); r.Status != StatusHealthy {
		t.Errorf("FlagCheck on = %v", r.Status)
	}
	r := GaugeCheck("qna", func() int { return 7 }).Check(ctx)
	if r.Details["value"] != 7 {
		t.Errorf("GaugeCheck value = %v", r.Details["value"])
	}
}
