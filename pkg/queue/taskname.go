package queue

import (
	"fmt"
	"reflect"
)

// defaultTaskName derives a task name from the payload's dynamic type,
// so delivery.Job and *delivery.Job both map to "delivery.Job". Enqueue
// and NewTaskHandler rely on this producing the same name for the same
// payload type.
func defaultTaskName(v any) string {
	t := reflect.TypeOf(v)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return fmt.Sprintf("%T", v)
	}
	return t.String()
}
