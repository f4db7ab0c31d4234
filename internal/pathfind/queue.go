package pathfind

import "github.com/AaronLay10/gridrunner/internal/grid"

// frontierItem is one queued visit. Entries are never updated in place;
// a cheaper visit pushes a new entry and the old one stays behind.
type frontierItem struct {
	pos      grid.Position
	priority float64
	seq      uint64
}

// frontier is a min-heap on priority, FIFO among equal priorities.
type frontier []frontierItem

func (f frontier) Len() int { return len(f) }

func (f frontier) Less(i, j int) bool {
	if f[i].priority != f[j].priority {
		return f[i].priority < f[j].priority
	}
	return f[i].seq < f[j].seq
}

func (f frontier) Swap(i, j int) { f[i], f[j] = f[j], f[i] }

func (f *frontier) Push(x any) {
	*f = append(*f, x.(frontierItem))
}

func (f *frontier) Pop() any {
	old := *f
	n := len(old)
	item := old[n-1]
	*f = old[:n-1]
	return item
}
