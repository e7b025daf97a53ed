// Command annotations counts keypoint labels in a Label Studio export.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/tidwall/gjson"
)

// TaskCount is the number of matching keypoints in one annotated task.
type TaskCount struct {
	Task  int64
	Count int
}

// CountLabels counts keypoints carrying label in the first annotation of each
// task. data may be a single task object or an array of tasks.
func CountLabels(data []byte, label string) ([]TaskCount, int, error) {
	if !gjson.ValidBytes(data) {
		return nil, 0, fmt.Errorf("invalid JSON")
	}

	root := gjson.ParseBytes(data)
	tasks := []gjson.Result{root}
	if root.IsArray() {
		tasks = root.Array()
	}

	counts := make([]TaskCount, 0, len(tasks))
	total := 0
	for _, task := range tasks {
		n := 0
		task.Get("annotations.0.result").ForEach(func(_, region gjson.Result) bool {
			region.Get("value.keypointlabels").ForEach(func(_, l gjson.Result) bool {
				if l.String() == label {
					n++
					return false
				}
				return true
			})
			return true
		})
		counts = append(counts, TaskCount{Task: task.Get("id").Int(), Count: n})
		total += n
	}
	return counts, total, nil
}

func main() {
	file := flag.String("file", "temp_annotationfille.json", "Label Studio export (JSON)")
	label := flag.String("label", "Head", "Keypoint label to count")
	flag.Parse()

	data, err := os.ReadFile(*file)
	if err != nil {
		log.Fatalf("Failed to read %s: %v", *file, err)
	}

	counts, total, err := CountLabels(data, *label)
	if err != nil {
		log.Fatalf("Failed to parse %s: %v", *file, err)
	}

	if len(counts) > 1 {
		for _, c := range counts {
			fmt.Printf("Task %d: %d\n", c.Task, c.Count)
		}
	}
	fmt.Printf("Number of annotations: %d\n", total)
}
