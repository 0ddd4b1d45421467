package model

import "testing"

func TestStage_IsTerminal(t *testing.T) {
	tests := []struct {
		stage    Stage
		expected bool
	}{
		{StageQueued, false},
		{StageInfo, false},
		{StageDownloading, false},
		{StageConverting, false},
		{StageSplitting, false},
		{StageAddingText, false},
		{StageCompleted, true},
		{StageError, true},
	}

	for _, test := range tests {
		if result := test.stage.IsTerminal(); result != test.expected {
			t.Errorf("Stage(%s).IsTerminal() = %v, expected %v", test.stage, result, test.expected)
		}
	}
}

func TestStage_String(t *testing.T) {
	if StageAddingText.String() != "adding-text" {
		t.Errorf("StageAddingText.String() = %s, expected adding-text", StageAddingText)
	}
}
