// Package taskstate implements the task state manager (C3): cache key
// namespacing, dialogue/task-id linking, and the stage-to-status derivation
// rule of spec.md §4.2.
package taskstate

import "fmt"

func StatusKey(id string) string   { return fmt.Sprintf("task:status:%s", id) }
func DialogueKey(id string) string { return fmt.Sprintf("task:dialogue:%s", id) }
func SpecKey(id string) string     { return fmt.Sprintf("task:spec:%s", id) }
