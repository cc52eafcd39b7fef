package engine

import (
	"testing"

	"exposureflow/models"
)

func TestResolveGreeksModelValues(t *testing.T) {
	q := models.QuoteSnapshot{Greeks: &models.Greeks{Delta: d("0.55"), Gamma: d("0.03")}}

	g := ResolveGreeks(q, models.RightCall, d("150"), d("155"))
	if g.Heuristic {
		t.Fatal("model greeks must not be flagged heuristic")
	}
	if !g.Delta.Equal(d("0.55")) || !g.Gamma.Equal(d("0.03")) {
		t.Fatalf("model greeks passthrough: %+v", g)
	}
}

func TestResolveGreeksModelClamped(t *testing.T) {
	q := models.QuoteSnapshot{Greeks: &models.Greeks{Delta: d("1.8"), Gamma: d("-0.5")}}
	g := ResolveGreeks(q, models.RightCall, d("150"), d("155"))
	if !g.Delta.Equal(d("1")) {
		t.Fatalf("delta clamp high: %s", g.Delta)
	}
	if !g.Gamma.IsZero() {
		t.Fatalf("gamma floor: %s", g.Gamma)
	}

	q = models.QuoteSnapshot{Greeks: &models.Greeks{Delta: d("-2.4"), Gamma: d("0.01")}}
	g = ResolveGreeks(q, models.RightPut, d("150"), d("155"))
	if !g.Delta.Equal(d("-1")) {
		t.Fatalf("delta clamp low: %s", g.Delta)
	}
}

func TestResolveGreeksHeuristicTable(t *testing.T) {
	cases := []struct {
		name       string
		right      models.Right
		strike     string
		underlying string
		delta      string
	}{
		{"call in the money", models.RightCall, "40", "50", "0.7"},
		{"call out of the money", models.RightCall, "60", "50", "0.3"},
		{"call at the strike", models.RightCall, "50", "50", "0.3"},
		{"put in the money", models.RightPut, "60", "50", "-0.7"},
		{"put out of the money", models.RightPut, "40", "50", "-0.3"},
		{"put at the strike", models.RightPut, "50", "50", "-0.3"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			g := ResolveGreeks(models.QuoteSnapshot{}, c.right, d(c.strike), d(c.underlying))
			if !g.Heuristic {
				t.Fatal("expected heuristic flag")
			}
			if !g.Delta.Equal(d(c.delta)) {
				t.Fatalf("delta = %s, want %s", g.Delta, c.delta)
			}
			if !g.Gamma.Equal(d("0.01")) {
				t.Fatalf("gamma = %s, want 0.01", g.Gamma)
			}
		})
	}
}
