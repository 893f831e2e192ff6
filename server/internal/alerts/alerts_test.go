package alerts

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/waterworm/waterworm/pkg/types"
	"github.com/waterworm/waterworm/server/internal/config"
)

var testGoal = types.Goal{
	Amount: 40_000_000,
	Start:  time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC),
	End:    time.Date(2025, 8, 31, 0, 0, 0, 0, time.UTC),
}

func sampleSnapshot() *types.Snapshot {
	return &types.Snapshot{
		SourceID:      "tw",
		Amount:        18_000_000,
		SampleCount:   40,
		Goal:          testGoal,
		Target:        20_000_000,
		PacePct:       90,
		Remaining:     22_000_000,
		DaysLeft:      15,
		State:         "on_track",
		LastIncrement: -25,
		Threshold:     4200,
		NegativeCount: 1,
		LargeEvents:   []types.LargeEvent{{Increment: 9000}, {Increment: 12000}},
	}
}

func TestEvalCondition(t *testing.T) {
	tests := []struct {
		cond      string
		wantFire  bool
		wantValue float64
	}{
		{"amount > 1000000", true, 18_000_000},
		{"pace_pct < 90", false, 90},
		{"pace_pct <= 90", true, 90},
		{"last_increment < 0", true, -25},
		{"large_count >= 2", true, 2},
		{"threshold > 5000", false, 4200},
		{"days_left < 3", false, 15},
		{"remaining != 0", true, 22_000_000},
		{"negative_count > 0", true, 1},
		{"state == on_track", true, 0},
		{"state != behind", true, 0},
		{"state > behind", false, 0},
		{"unknown_field > 1", false, 0},
		{"amount > lots", false, 0},
		{"amount >", false, 0},
	}
	snap := sampleSnapshot()
	for _, tc := range tests {
		t.Run(tc.cond, func(t *testing.T) {
			fires, v := evalCondition(tc.cond, snap)
			if fires != tc.wantFire {
				t.Errorf("fires = %v, want %v", fires, tc.wantFire)
			}
			if fires && v != tc.wantValue {
				t.Errorf("value = %v, want %v", v, tc.wantValue)
			}
		})
	}
}

func TestEvalCondition_InsufficientData(t *testing.T) {
	snap := &types.Snapshot{SourceID: "tw", Amount: 500, SampleCount: 1, Insufficient: true}
	for _, cond := range []string{"threshold < 1", "large_count == 0", "last_increment == 0", "pace_pct < 90"} {
		if fires, _ := evalCondition(cond, snap); fires {
			t.Errorf("%q fired on a snapshot without the data it needs", cond)
		}
	}
	if fires, _ := evalCondition("amount > 100", snap); !fires {
		t.Error("amount rule should still evaluate")
	}
}

func TestEvalCondition_NoGoal(t *testing.T) {
	snap := &types.Snapshot{SourceID: "tw", Amount: 500, SampleCount: 3, State: "unknown"}
	for _, cond := range []string{"days_left < 3", "remaining > 0", "remaining == 0", "pace_pct < 90"} {
		if fires, _ := evalCondition(cond, snap); fires {
			t.Errorf("%q fired on a source without a goal", cond)
		}
	}

	e, _ := newTestEngine([]config.AlertRule{{Name: "ending", Condition: "days_left < 3"}})
	e.Evaluate(snap)
	if n := len(e.Active()); n != 0 {
		t.Errorf("active = %d, want no alert for a goal-less source", n)
	}
}

func TestValidCondition(t *testing.T) {
	for cond, want := range map[string]bool{
		"pace_pct < 90":      true,
		"state == behind":    true,
		"state < behind":     false,
		"large_count => 3":   false,
		"drop_pct > 10":      false,
		"days_left < soon":   false,
		"amount":             false,
		"threshold >= 1e4":   true,
		"negative_count > 0": true,
	} {
		if got := validCondition(cond); got != want {
			t.Errorf("validCondition(%q) = %v, want %v", cond, got, want)
		}
	}
}

func newTestEngine(rules []config.AlertRule, hooks ...config.WebhookConfig) (*Engine, *time.Time) {
	e := New(config.AlertsConfig{Rules: rules, Webhooks: hooks})
	clock := time.Date(2025, 8, 15, 12, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return clock }
	return e, &clock
}

func TestEvaluate_FireResolveCooldown(t *testing.T) {
	e, clock := newTestEngine([]config.AlertRule{
		{Name: "behind", Condition: "state == behind", Severity: "critical", Cooldown: 30 * time.Minute},
	})
	snap := sampleSnapshot()
	snap.State = "behind"

	e.Evaluate(snap)
	active := e.Active()
	if len(active) != 1 || active[0].State != StateFiring || active[0].Severity != "critical" {
		t.Fatalf("after first evaluation: %+v", active)
	}

	// Still behind: no duplicate alert.
	*clock = clock.Add(time.Minute)
	e.Evaluate(snap)
	if n := len(e.Active()); n != 1 {
		t.Fatalf("active = %d, want 1", n)
	}

	// Back on track: resolved and kept in recent history.
	*clock = clock.Add(time.Minute)
	snap.State = "on_track"
	e.Evaluate(snap)
	active = e.Active()
	if len(active) != 1 || active[0].State != StateResolved || active[0].ResolvedAt == nil {
		t.Fatalf("after recovery: %+v", active)
	}

	// Behind again inside the cooldown: suppressed.
	*clock = clock.Add(time.Minute)
	snap.State = "behind"
	e.Evaluate(snap)
	for _, a := range e.Active() {
		if a.State == StateFiring {
			t.Fatal("alert re-fired during cooldown")
		}
	}

	// After the cooldown it fires again and sorts first.
	*clock = clock.Add(time.Hour)
	e.Evaluate(snap)
	active = e.Active()
	if len(active) == 0 || active[0].State != StateFiring {
		t.Fatalf("after cooldown: %+v", active)
	}
}

func TestEvaluate_ResolvedHistoryExpires(t *testing.T) {
	e, clock := newTestEngine([]config.AlertRule{{Name: "low", Condition: "amount < 100"}})
	low := &types.Snapshot{SourceID: "tw", Amount: 10}
	e.Evaluate(low)
	if a := e.Active(); len(a) != 1 || a[0].Severity != "warning" {
		t.Fatalf("active = %+v, want one warning", a)
	}
	e.Evaluate(&types.Snapshot{SourceID: "tw", Amount: 1000})

	*clock = clock.Add(2 * time.Hour)
	if n := len(e.Active()); n != 0 {
		t.Errorf("active = %d, want resolved alert aged out", n)
	}
}

func TestEvaluate_PerSourceKeys(t *testing.T) {
	e, _ := newTestEngine([]config.AlertRule{{Name: "low", Condition: "amount < 100"}})
	e.Evaluate(&types.Snapshot{SourceID: "a", Amount: 1})
	e.Evaluate(&types.Snapshot{SourceID: "b", Amount: 1})
	if n := len(e.Active()); n != 2 {
		t.Errorf("active = %d, want one alert per source", n)
	}
}

func TestNew_DropsInvalidRules(t *testing.T) {
	e := New(config.AlertsConfig{Rules: []config.AlertRule{
		{Name: "bad", Condition: "strength_score < 60"},
		{Name: "good", Condition: "pace_pct < 50"},
	}})
	if len(e.rules) != 1 || e.rules[0].Name != "good" {
		t.Errorf("rules = %+v", e.rules)
	}
}

func TestWebhooks_Delivered(t *testing.T) {
	var mu sync.Mutex
	bodies := map[string][]string{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies[r.URL.Path] = append(bodies[r.URL.Path], string(b))
		mu.Unlock()
		if r.Header.Get("Content-Type") != "application/json" {
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	defer srv.Close()

	t.Setenv("WW_SLACK", srv.URL+"/slack")
	t.Setenv("WW_TEAMS", srv.URL+"/teams")
	t.Setenv("WW_HTTP", srv.URL+"/http")
	e, _ := newTestEngine(
		[]config.AlertRule{{Name: "glitch", Condition: "last_increment < 0", Severity: "info"}},
		config.WebhookConfig{Type: "slack", URLEnv: "WW_SLACK"},
		config.WebhookConfig{Type: "teams", URLEnv: "WW_TEAMS"},
		config.WebhookConfig{Type: "http", URLEnv: "WW_HTTP"},
		config.WebhookConfig{Type: "http", URLEnv: "WW_UNSET"},
	)

	e.Evaluate(sampleSnapshot())
	e.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(bodies["/slack"]) != 1 || !strings.Contains(bodies["/slack"][0], "[INFO]") || !strings.Contains(bodies["/slack"][0], "-$25.00") {
		t.Errorf("slack bodies = %v", bodies["/slack"])
	}
	var card map[string]interface{}
	if err := json.Unmarshal([]byte(bodies["/teams"][0]), &card); err != nil {
		t.Fatalf("teams body: %v", err)
	}
	if card["@type"] != "MessageCard" || card["themeColor"] != "1B98E0" {
		t.Errorf("teams card = %v", card)
	}
	var generic struct {
		Alert Alert `json:"alert"`
	}
	if err := json.Unmarshal([]byte(bodies["/http"][0]), &generic); err != nil {
		t.Fatalf("http body: %v", err)
	}
	if generic.Alert.RuleName != "glitch" || generic.Alert.Value != -25 {
		t.Errorf("http alert = %+v", generic.Alert)
	}
}

func TestPost_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	e := New(config.AlertsConfig{})
	if err := e.post(srv.URL, []byte(`{}`)); err == nil || !strings.Contains(err.Error(), "500") {
		t.Errorf("post error = %v, want HTTP 500", err)
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		cond  string
		value float64
		want  string
	}{
		{"amount < 20000000", 18_000_000, "low on tw: amount < 20000000 (now $18,000,000.00)"},
		{"pace_pct < 95", 90, "low on tw: pace_pct < 95 (now 90.0%)"},
		{"days_left < 20", 15, "low on tw: days_left < 20 (now 15.0 days)"},
		{"large_count >= 3", 4, "low on tw: large_count >= 3 (now 4)"},
		{"state == behind", 0, "low on tw: state == behind"},
	}
	for _, tc := range tests {
		if got := describe("low", "tw", tc.cond, tc.value); got != tc.want {
			t.Errorf("describe(%q) = %q, want %q", tc.cond, got, tc.want)
		}
	}
}
