package prompt

import (
	"strings"
	"testing"

	"github.com/oemforge/oemforge/internal/model"
)

func testConfig() model.PowertrainConfig {
	trans := "TR-80SD"
	return model.PowertrainConfig{
		EngineCode:       "B4204T43",
		TransmissionCode: &trans,
		DriveType:        "awd",
	}
}

func TestBuild_Deterministic(t *testing.T) {
	cfg := testConfig()
	a := Build(cfg, "Volvo")
	b := Build(cfg, "Volvo")
	if a != b {
		t.Fatal("Build must be deterministic for the same input")
	}
}

func TestBuild_HondaAppendix(t *testing.T) {
	cfg := testConfig()
	out := Build(cfg, "Honda")
	if !strings.Contains(out, "maintenance minder") {
		t.Fatal("expected Honda maintenance-minder appendix")
	}
	if strings.Contains(out, "Mercedes-Benz service system") {
		t.Fatal("did not expect Mercedes appendix for Honda")
	}
}

func TestBuild_MercedesAppendixIncludesSizeCap(t *testing.T) {
	out := Build(testConfig(), "Mercedes-Benz")
	if !strings.Contains(out, "Mercedes-Benz service system") {
		t.Fatal("expected Mercedes appendix")
	}
	if !strings.Contains(out, "risk of truncation") {
		t.Fatal("expected Mercedes-specific response-size cap instruction")
	}
}

func TestBuild_NoAppendixForOtherMakes(t *testing.T) {
	out := Build(testConfig(), "Toyota")
	if strings.Contains(out, "maintenance minder") || strings.Contains(out, "Mercedes-Benz service system") {
		t.Fatal("did not expect a brand appendix for Toyota")
	}
}

func TestBuild_EmbedsClosedSets(t *testing.T) {
	out := Build(testConfig(), "Volvo")
	for _, want := range []string{"fixed_interval", "engine_oil", "tighten_torque", "engine, ignition"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected prompt to contain %q", want)
		}
	}
}
