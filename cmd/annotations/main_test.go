package main

import "testing"

const singleTask = `{
  "id": 7,
  "annotations": [{
    "result": [
      {"value": {"x": 10, "y": 20, "keypointlabels": ["Head"]}},
      {"value": {"x": 11, "y": 21, "keypointlabels": ["Head"]}},
      {"value": {"x": 12, "y": 22, "keypointlabels": ["Body"]}}
    ]
  }]
}`

// ========================================
// Annotation counting tests
// ========================================

func TestCountLabels_SingleTask(t *testing.T) {
	counts, total, err := CountLabels([]byte(singleTask), "Head")
	if err != nil {
		t.Fatalf("CountLabels failed: %v", err)
	}
	if total != 2 {
		t.Errorf("Expected 2 heads, got %d", total)
	}
	if len(counts) != 1 || counts[0].Task != 7 {
		t.Errorf("Expected one count for task 7, got %+v", counts)
	}
}

func TestCountLabels_TaskArray(t *testing.T) {
	data := `[` + singleTask + `,
	  {"id": 8, "annotations": [{"result": [{"value": {"keypointlabels": ["Head"]}}]}]},
	  {"id": 9, "annotations": []}
	]`

	counts, total, err := CountLabels([]byte(data), "Head")
	if err != nil {
		t.Fatalf("CountLabels failed: %v", err)
	}

	expected := []int{2, 1, 0}
	if len(counts) != len(expected) {
		t.Fatalf("Expected %d tasks, got %d", len(expected), len(counts))
	}
	for i, n := range expected {
		if counts[i].Count != n {
			t.Errorf("Task %d: expected %d, got %d", counts[i].Task, n, counts[i].Count)
		}
	}
	if total != 3 {
		t.Errorf("Expected total 3, got %d", total)
	}
}

func TestCountLabels_OtherLabel(t *testing.T) {
	_, total, err := CountLabels([]byte(singleTask), "Body")
	if err != nil {
		t.Fatalf("CountLabels failed: %v", err)
	}
	if total != 1 {
		t.Errorf("Expected 1 body, got %d", total)
	}
}

func TestCountLabels_InvalidJSON(t *testing.T) {
	if _, _, err := CountLabels([]byte(`{"annotations": [`), "Head"); err == nil {
		t.Error("Expected error for invalid JSON")
	}
}
