package render

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
)

func TestTransferLookupInterpolates(t *testing.T) {
	tf := Grayscale(0, 10)

	r, g, b, a := tf.Lookup(5)
	for name, v := range map[string]float64{"r": r, "g": g, "b": b, "a": a} {
		if math.Abs(v-0.5) > 1e-9 {
			t.Errorf("%s = %v, want 0.5", name, v)
		}
	}
}

func TestTransferLookupClampsEndpoints(t *testing.T) {
	tf := Grayscale(0, 10)

	if _, _, _, a := tf.Lookup(-5); a != 0 {
		t.Errorf("below range: a = %v, want 0", a)
	}
	if r, _, _, a := tf.Lookup(25); r != 1 || a != 1 {
		t.Errorf("above range: r = %v a = %v, want 1 1", r, a)
	}
}

func TestTransferEmptyDefaults(t *testing.T) {
	tf := &TransferFunction{}
	r, g, b, a := tf.Lookup(0.3)
	if r != 1 || g != 1 || b != 1 || a != 1 {
		t.Errorf("empty transfer = (%v,%v,%v,%v), want opaque white", r, g, b, a)
	}
}

func TestTransferNormalizeSorts(t *testing.T) {
	tf := &TransferFunction{
		Opacities: []OpacityPoint{
			{Value: 10, Opacity: 1},
			{Value: 0, Opacity: 0},
		},
	}
	tf.Normalize()

	if tf.Opacities[0].Value != 0 {
		t.Fatalf("first point value = %v, want 0", tf.Opacities[0].Value)
	}
	if a := tf.opacity(5); math.Abs(a-0.5) > 1e-9 {
		t.Errorf("opacity(5) = %v, want 0.5", a)
	}
}

func TestTransferJSONRoundTrip(t *testing.T) {
	orig := CoolToWarm(0, 255)

	raw, err := json.Marshal(orig)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	for _, key := range []string{`"r"`, `"g"`, `"b"`} {
		if !strings.Contains(string(raw), key) {
			t.Fatalf("encoded transfer %s is missing %s", raw, key)
		}
	}

	var got TransferFunction
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(got.Colors) != len(orig.Colors) {
		t.Fatalf("color points = %d, want %d", len(got.Colors), len(orig.Colors))
	}
	for i, want := range orig.Colors {
		if got.Colors[i] != want {
			t.Errorf("color[%d] = %+v, want %+v", i, got.Colors[i], want)
		}
	}
	for i, want := range orig.Opacities {
		if got.Opacities[i] != want {
			t.Errorf("opacity[%d] = %+v, want %+v", i, got.Opacities[i], want)
		}
	}
}

func TestCoolToWarmMidpointIsNeutral(t *testing.T) {
	tf := CoolToWarm(0, 1)
	r, g, b, _ := tf.Lookup(0.5)
	if math.Abs(r-g) > 1e-9 || math.Abs(g-b) > 1e-9 {
		t.Errorf("midpoint color = (%v,%v,%v), want gray", r, g, b)
	}
}
