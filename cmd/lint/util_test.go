package main

import "testing"

func TestParseMemBudget(t *testing.T) {
	tests := []struct {
		input   string
		want    int64
		wantErr bool
	}{
		{"100", 100, false},
		{"1K", 1000, false},
		{"1KiB", 1024, false},
		{"256mb", 256 * 1000 * 1000, false},
		{"1GiB", 1 << 30, false},
		{"", 0, true},
		{"abc", 0, true},
	}

	for _, tt := range tests {
		got, err := parseMemBudget(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseMemBudget(%q): err = %v, wantErr = %v", tt.input, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("parseMemBudget(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestParseFormatterOpts(t *testing.T) {
	opts, err := parseFormatterOpts([]string{"stamp:iso8601", "sh:link=hard", "sh:careful=yes"})
	if err != nil {
		t.Fatal(err)
	}
	if opts["stamp"]["iso8601"] != "" {
		t.Errorf("bare key should map to an empty value, got %q", opts["stamp"]["iso8601"])
	}
	if opts["sh"]["link"] != "hard" || opts["sh"]["careful"] != "yes" {
		t.Errorf("sh options not collected: %v", opts["sh"])
	}
}

func TestParseFormatterOptsRejectsMalformed(t *testing.T) {
	for _, spec := range []string{"noformatter", ":key=1", "fmt:"} {
		if _, err := parseFormatterOpts([]string{spec}); err == nil {
			t.Errorf("expected error for %q", spec)
		}
	}
}

func TestBuildConfigRejectsContradictions(t *testing.T) {
	base := func() *findOptions {
		return &findOptions{threads: 2, maxDepth: -1, algorithm: "bastard", paranoidMem: "1mb", sortCriteria: "pma"}
	}

	opts := base()
	opts.followLinks = true
	opts.symlinksAsFiles = true
	if _, err := buildConfig([]string{"."}, opts); err == nil {
		t.Error("contradictory symlink flags must be a config error")
	}

	opts = base()
	opts.hardlinked = true
	opts.noHardlinked = true
	if _, err := buildConfig([]string{"."}, opts); err == nil {
		t.Error("contradictory hardlink flags must be a config error")
	}

	opts = base()
	opts.algorithm = "md5"
	if _, err := buildConfig([]string{"."}, opts); err == nil {
		t.Error("unknown algorithm must be a config error")
	}
}

func TestBuildConfigClampDefaults(t *testing.T) {
	opts := &findOptions{threads: 2, maxDepth: -1, algorithm: "sha256", paranoidMem: "1mb", sortCriteria: "pma", clampLow: "5%"}
	cfg, err := buildConfig([]string{"."}, opts)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.HasClamp {
		t.Fatal("setting --clamp-low must enable clamping")
	}
	if got := cfg.ClampHigh.Resolve(1000); got != 1000 {
		t.Errorf("unset --clamp-top should default to end of file, got %d", got)
	}
	if got := cfg.ClampLow.Resolve(1000); got != 50 {
		t.Errorf("--clamp-low=5%% of 1000 should be 50, got %d", got)
	}
}
