package tasklist

import (
	"github.com/jamsocket/aper/pkg/overlay"
	"github.com/jamsocket/aper/pkg/store"
)

// Task is one entry in the list: a name and a completion flag, each stored
// as its own atom so concurrent edits to different fields never conflict.
type Task struct {
	Name overlay.Atom[string]
	Done overlay.Atom[bool]
}

func attachTask(h overlay.Handle, prefix store.Path) Task {
	return Task{
		Name: overlay.NewAtom[string](h, prefix.Append(store.PathSegment("Name")), overlay.StringCodec{}),
		Done: overlay.NewAtom[bool](h, prefix.Append(store.PathSegment("Done")), overlay.BoolCodec{}),
	}
}

// TaskList is the root application state. Each field is anchored at a
// segment equal to the field's name bytes, the same layout a generated
// attach implementation would produce for this struct.
type TaskList struct {
	Title overlay.Atom[string]
	// Tasks holds task bodies keyed by the application-assigned task id.
	Tasks overlay.Map[string, Task]
	// Order holds the display order: each element is an atom carrying a
	// task id, positioned by its fractional key.
	Order overlay.List[overlay.Atom[string]]
	// CompletedTotal counts completions over the list's lifetime; it is
	// never decremented by RemoveCompleted, only by un-completing a task.
	CompletedTotal overlay.Counter
}

// Attach anchors a TaskList at the root of h.
func Attach(h overlay.Handle) TaskList {
	return TaskList{
		Title: overlay.NewAtom[string](h, store.Path{store.PathSegment("Title")}, overlay.StringCodec{}),
		Tasks: overlay.NewMap[string, Task](h, store.Path{store.PathSegment("Tasks")}, overlay.StringCodec{}, attachTask),
		Order: overlay.NewList[overlay.Atom[string]](h, store.Path{store.PathSegment("Order")}, func(h overlay.Handle, prefix store.Path) overlay.Atom[string] {
			return overlay.NewAtom[string](h, prefix, overlay.StringCodec{})
		}),
		CompletedTotal: overlay.NewCounter(h, store.Path{store.PathSegment("CompletedTotal")}),
	}
}

// orderElement finds the Order element carrying taskID, if any.
func (l TaskList) orderElement(taskID string) (overlay.ElementID, bool) {
	for _, entry := range l.Order.Iter() {
		if entry.Value.Get() == taskID {
			return entry.ID, true
		}
	}
	return nil, false
}

// TaskView is a decoded read of one task in display order, for hosts that
// want to render the list without touching overlays themselves.
type TaskView struct {
	ID   string
	Name string
	Done bool
}

// View returns the current tasks in display order.
func (l TaskList) View() []TaskView {
	var out []TaskView
	for _, entry := range l.Order.Iter() {
		id := entry.Value.Get()
		task, ok := l.Tasks.Get(id)
		if !ok {
			continue
		}
		out = append(out, TaskView{ID: id, Name: task.Name.Get(), Done: task.Done.Get()})
	}
	return out
}
