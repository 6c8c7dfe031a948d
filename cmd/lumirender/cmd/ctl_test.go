package cmd

import (
	"testing"
)

func TestParseParams(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    map[string]float64
		wantErr bool
	}{
		{"single", []string{"intensity=0.5"}, map[string]float64{"intensity": 0.5}, false},
		{"several", []string{"x=0.1", "y=-2"}, map[string]float64{"x": 0.1, "y": -2}, false},
		{"missing equals", []string{"intensity"}, nil, true},
		{"empty name", []string{"=1"}, nil, true},
		{"not a number", []string{"x=bright"}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseParams(tt.args)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("%s: expected %v, got %v", k, v, got[k])
				}
			}
		})
	}
}

func TestFormatParamsIsSorted(t *testing.T) {
	got := formatParams(map[string]float64{"y": 0.5, "intensity": 1, "x": 0.25})
	if got != "intensity=1 x=0.25 y=0.5" {
		t.Errorf("unexpected %q", got)
	}
}
