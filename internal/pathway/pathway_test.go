package pathway

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func writePathwayFile(t *testing.T, dir, id string, p Pathway) {
	t.Helper()
	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal pathway: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, id+".json"), data, 0o644); err != nil {
		t.Fatalf("write pathway file: %v", err)
	}
}

func samplePathway() Pathway {
	return Pathway{
		ID:      "P-SCI",
		Name:    "Scientific evidence",
		Version: "1.0.0",
		Trigger: Trigger{EvidenceType: "SCI"},
		Levels: []Level{
			{
				Depth:          "1",
				WorkerTemplate: WorkerResearch,
				Task: TaskTemplate{
					Purpose:  "Assess study {{evidence.citation.doi}}",
					KeyTasks: "Determine study type for {{evidence.description}}",
					EndState: "Report sourceRating and infoRating",
				},
				RequiredOutputs: []RequiredOutputField{
					{Name: "studyType", Type: "string", Required: true},
					{Name: "retracted", Type: "boolean", Required: true},
				},
				Branches: []Branch{
					{Signal: "retracted", Operator: OpEquals, Value: true, Terminate: true},
					{Signal: "studyType", Operator: OpEquals, Value: "rct", NextDepth: "2A"},
				},
			},
			{
				Depth:          "2A",
				WorkerTemplate: WorkerReview,
				Task: TaskTemplate{
					Purpose: "Evaluate bias given {{parent.studyType}}",
				},
			},
		},
		ExitCriteria: ExitCriteria{MinimumSources: 1, RequiredLevels: 1, TimeoutMinutes: 15},
	}
}

func TestLoadDirParsesAndValidates(t *testing.T) {
	dir := t.TempDir()
	writePathwayFile(t, dir, "P-SCI", samplePathway())

	reg, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("load dir: %v", err)
	}
	p, err := reg.Get("P-SCI")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.Name != "Scientific evidence" {
		t.Fatalf("unexpected name: %q", p.Name)
	}
}

func TestLoadDirRejectsInvalidID(t *testing.T) {
	dir := t.TempDir()
	bad := samplePathway()
	bad.ID = "science"
	writePathwayFile(t, dir, "science", bad)

	if _, err := LoadDir(dir); err == nil {
		t.Fatal("expected validation error for malformed id")
	}
}

func TestLoadDirRejectsTooManyLevels(t *testing.T) {
	dir := t.TempDir()
	bad := samplePathway()
	for i := 0; i < 5; i++ {
		bad.Levels = append(bad.Levels, Level{Depth: string(rune('3' + i)), WorkerTemplate: WorkerResearch})
	}
	writePathwayFile(t, dir, "P-SCI", bad)

	if _, err := LoadDir(dir); err == nil {
		t.Fatal("expected error for more than 4 levels")
	}
}

func TestRegistryGetMissingReturnsNotFound(t *testing.T) {
	dir := t.TempDir()
	writePathwayFile(t, dir, "P-SCI", samplePathway())
	reg, _ := LoadDir(dir)

	if _, err := reg.Get("P-XYZ"); err == nil {
		t.Fatal("expected not found error")
	}
}

func TestForTriggerFiltersByEvidenceType(t *testing.T) {
	dir := t.TempDir()
	writePathwayFile(t, dir, "P-SCI", samplePathway())
	gov := samplePathway()
	gov.ID = "P-GOV"
	gov.Trigger.EvidenceType = "GOV"
	writePathwayFile(t, dir, "P-GOV", gov)

	reg, _ := LoadDir(dir)
	matches := reg.ForTrigger("SCI")
	if len(matches) != 1 || matches[0].ID != "P-SCI" {
		t.Fatalf("unexpected matches: %+v", matches)
	}
}

func TestBuildTaskInterpolatesPlaceholders(t *testing.T) {
	level := samplePathway().Levels[0]
	evidence := map[string]any{
		"description": "PFAS exposure study",
		"citation":    map[string]any{"doi": "10.1/x"},
	}

	task := BuildTask(level, evidence, nil)
	want := "Assess study 10.1/x"
	if task.Purpose != want {
		t.Fatalf("purpose = %q, want %q", task.Purpose, want)
	}
	if task.KeyTasks != "Determine study type for PFAS exposure study" {
		t.Fatalf("keyTasks = %q", task.KeyTasks)
	}
}

func TestBuildTaskUnknownPlaceholderResolvesEmpty(t *testing.T) {
	level := Level{Task: TaskTemplate{Purpose: "Value is [{{evidence.missing.field}}]"}}
	task := BuildTask(level, map[string]any{}, nil)
	if task.Purpose != "Value is []" {
		t.Fatalf("purpose = %q, want empty substitution", task.Purpose)
	}
}

func TestBuildTaskParentNamespace(t *testing.T) {
	level := samplePathway().Levels[1]
	task := BuildTask(level, nil, map[string]any{"studyType": "rct"})
	if task.Purpose != "Evaluate bias given rct" {
		t.Fatalf("purpose = %q", task.Purpose)
	}
}
