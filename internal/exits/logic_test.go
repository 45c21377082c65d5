package exits

import (
	"encoding/json"
	"testing"

	"github.com/razaquegoraya007/trading-bot-env/internal/domain/indicators"
)

func TestComputeLevels_FractionIsStatic(t *testing.T) {
	cfg := DefaultConfig()

	a := ComputeLevels(cfg, 100, indicators.Value{V: 1, Valid: true})
	b := ComputeLevels(cfg, 100, indicators.Value{V: 50, Valid: true})

	if a != b {
		t.Errorf("fraction levels must not depend on ATR: %+v vs %+v", a, b)
	}
	if a.Stop != 98 || a.Take != 104 {
		t.Errorf("Expected stop=98 take=104, got stop=%.4f take=%.4f", a.Stop, a.Take)
	}
}

func TestComputeLevels_ATRIsDynamic(t *testing.T) {
	cfg := Config{Mode: ModeATR, ATRMultiplier: 2}

	a := ComputeLevels(cfg, 100, indicators.Value{V: 1, Valid: true})
	if a.Stop != 98 || a.Take != 102 {
		t.Errorf("Expected stop=98 take=102, got %+v", a)
	}

	b := ComputeLevels(cfg, 100, indicators.Value{V: 3, Valid: true})
	if b.Stop != 94 || b.Take != 106 {
		t.Errorf("Expected stop=94 take=106, got %+v", b)
	}
}

func TestComputeLevels_ATRWarmup(t *testing.T) {
	cfg := Config{Mode: ModeATR, ATRMultiplier: 2}
	levels := ComputeLevels(cfg, 100, indicators.Value{})

	if levels.Valid {
		t.Error("Expected no levels before ATR is warm")
	}
	if levels.Check(0) != NoExit {
		t.Error("Invalid levels must never trigger an exit")
	}
}

func TestLevelsCheck_Precedence(t *testing.T) {
	tests := []struct {
		name   string
		levels Levels
		price  float64
		want   Reason
	}{
		{"inside band", Levels{Stop: 90, Take: 110, Valid: true}, 100, NoExit},
		{"stop touched", Levels{Stop: 90, Take: 110, Valid: true}, 90, StopLoss},
		{"take touched", Levels{Stop: 90, Take: 110, Valid: true}, 110, TakeProfit},
		{"crossed band prefers stop", Levels{Stop: 100, Take: 100, Valid: true}, 100, StopLoss},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.levels.Check(tt.price); got != tt.want {
				t.Errorf("Check(%.2f) = %s, want %s", tt.price, got, tt.want)
			}
		})
	}
}

func TestReason_JSONRoundTrip(t *testing.T) {
	data, err := json.Marshal(WhaleActivity)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if string(data) != `"whale_activity"` {
		t.Errorf("Expected whale_activity, got %s", data)
	}

	var r Reason
	if err := json.Unmarshal([]byte(`"forced_end_of_run"`), &r); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if r != ForcedEndOfRun {
		t.Errorf("Expected ForcedEndOfRun, got %s", r)
	}

	if _, err := ParseReason("margin_call"); err == nil {
		t.Error("Expected error for unknown reason")
	}
}
