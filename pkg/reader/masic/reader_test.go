package masic

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ChrisMcGann/PlexQuant/pkg/core"
)

func TestReadAll(t *testing.T) {
	input := "Dataset\tScanNumber\tInterferenceScore\tIon_126\tIon_127N\tIon_126_SignalToNoise\tIon_127N_SignalToNoise\n" +
		"ds1\t5\t0.9\t1000\t2000\t12.5\t20\n" +
		"ds1\t6\t1\t500\t\t3\t\n"

	rows, err := ReadAll(strings.NewReader(input), Options{})
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	want := []core.ReporterIntensity{
		{DatasetID: "ds1", ScanID: 5, Channel: "126", Intensity: 1000, InterferenceScore: 0.9, SignalToNoise: 12.5},
		{DatasetID: "ds1", ScanID: 5, Channel: "127N", Intensity: 2000, InterferenceScore: 0.9, SignalToNoise: 20},
		{DatasetID: "ds1", ScanID: 6, Channel: "126", Intensity: 500, InterferenceScore: 1, SignalToNoise: 3},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestDatasetOption(t *testing.T) {
	input := "ScanNumber\tIon_126\n7\t10\n"
	if _, err := ReadAll(strings.NewReader(input), Options{}); err == nil {
		t.Fatal("expected error without dataset")
	}
	rows, err := ReadAll(strings.NewReader(input), Options{DatasetID: "dsX"})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].DatasetID != "dsX" || rows[0].InterferenceScore != 1 {
		t.Errorf("rows = %+v", rows)
	}
}

func TestReaderErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"no channels", "Dataset\tScanNumber\nds1\t1\n"},
		{"bad intensity", "Dataset\tScanNumber\tIon_126\nds1\t1\tx\n"},
		{"negative intensity", "Dataset\tScanNumber\tIon_126\nds1\t1\t-5\n"},
		{"interference out of range", "Dataset\tScanNumber\tInterferenceScore\tIon_126\nds1\t1\t1.5\t10\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ReadAll(strings.NewReader(tt.input), Options{}); err == nil {
				t.Error("expected error")
			}
		})
	}
}
