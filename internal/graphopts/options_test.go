package graphopts

import "testing"

func TestMaybeBoolOrDefault(t *testing.T) {
	if !True.OrDefault(false) {
		t.Fatalf("True must always resolve true")
	}
	if False.OrDefault(true) {
		t.Fatalf("False must always resolve false")
	}
	if !Unset.OrDefault(true) {
		t.Fatalf("Unset must fall back to the supplied default")
	}
}

func TestNormalizeFillsCacheExpiryDefault(t *testing.T) {
	o := Normalize(Options{})
	if o.ExperimentalCacheExpiry != 10 {
		t.Fatalf("expected default cache expiry of 10, got %d", o.ExperimentalCacheExpiry)
	}
}

func TestNormalizePreservesExplicitCacheExpiry(t *testing.T) {
	o := Normalize(Options{ExperimentalCacheExpiry: 5})
	if o.ExperimentalCacheExpiry != 5 {
		t.Fatalf("expected explicit cache expiry preserved, got %d", o.ExperimentalCacheExpiry)
	}
}

func TestNormalizeDoesNotUpgradeExplicitZeroTreeshake(t *testing.T) {
	o := Normalize(Options{Treeshake: TreeshakeOptions{}})
	if o.Treeshake.Enabled {
		t.Fatalf("an explicit zero-value TreeshakeOptions must be honored as disabled")
	}
}
