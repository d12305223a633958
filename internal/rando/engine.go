package rando

import (
	"log/slog"

	"github.com/zyedidia/generic/list"
	"github.com/zyedidia/generic/stack"
)

// Task is one resumable unit of generation work. Next tries the task's next
// untried option and reports whether it succeeded; a task that returns false
// must leave no mutation behind. Undo reverts everything the last
// successful Next did, including the tasks it queued.
type Task interface {
	Next() bool
	Undo()
}

// engine runs tasks from a deque, keeping completed tasks on a stack so
// failures can walk back through them
type engine struct {
	queue *list.List[Task]
	done  *stack.Stack[Task]

	backtracks    int
	maxBacktracks int
	log           *slog.Logger
}

func newEngine(maxBacktracks int, log *slog.Logger) *engine {
	return &engine{
		queue:         list.New[Task](),
		done:          stack.New[Task](),
		maxBacktracks: maxBacktracks,
		log:           log,
	}
}

func (e *engine) pushFront(t Task) {
	e.queue.PushFront(t)
}

// pushBack seeds the queue with an attempt's first task
func (e *engine) pushBack(t Task) {
	e.queue.PushBack(t)
}

func (e *engine) popFront() {
	if e.queue.Front != nil {
		e.queue.Remove(e.queue.Front)
	}
}

// run drains the queue. On failure the failed task goes back to the front
// and the most recent completed task is undone and retried.
func (e *engine) run() error {
	for e.queue.Front != nil {
		front := e.queue.Front
		task := front.Value
		e.queue.Remove(front)

		if task.Next() {
			e.done.Push(task)
			continue
		}

		e.queue.PushFront(task)
		if e.done.Size() == 0 {
			return &GenerationError{Backtracks: e.backtracks, Reason: "no completed task left to undo"}
		}

		e.backtracks++
		if e.maxBacktracks > 0 && e.backtracks > e.maxBacktracks {
			e.log.Warn("backtrack ceiling reached", "backtracks", e.backtracks)
			return &GenerationError{Backtracks: e.backtracks, Reason: "backtrack ceiling reached"}
		}

		prev := e.done.Pop()
		prev.Undo()
		e.queue.PushFront(prev)
		e.log.Debug("backtrack", "task", prev, "backtracks", e.backtracks)
	}
	return nil
}

// taskBase carries the receipts and queued-task count every task needs
// for Undo. Children are only ever queued at the front.
type taskBase struct {
	g        *generator
	receipts []Receipt
	front    int
}

func (t *taskBase) record(r Receipt) {
	t.receipts = append(t.receipts, r)
}

func (t *taskBase) addFront(task Task) {
	t.g.engine.pushFront(task)
	t.front++
}

// revert undoes receipts recorded during a Next that then failed
func (t *taskBase) revert() {
	for i := len(t.receipts) - 1; i >= 0; i-- {
		t.receipts[i].Undo()
	}
	t.receipts = nil
}

func (t *taskBase) Undo() {
	t.revert()
	for ; t.front > 0; t.front-- {
		t.g.engine.popFront()
	}
}
