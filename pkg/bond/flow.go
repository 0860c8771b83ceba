package bond

// Flow is an application traffic stream identified by an opaque 32-bit
// fingerprint supplied by the upper layer.
type Flow struct {
	ID            int32
	createdAt     int64
	lastActivity  int64
	BytesIn       uint64
	BytesOut      uint64
	AssignedPathSlot int
}

func newFlow(id int32, now int64) *Flow {
	return &Flow{ID: id, createdAt: now, lastActivity: now, AssignedPathSlot: NoPathSlot}
}

func (f *Flow) assignPath(slot int, now int64) {
	f.AssignedPathSlot = slot
	f.lastActivity = now
}

// age returns the milliseconds since the flow was last active.
func (f *Flow) age(now int64) int64 { return now - f.lastActivity }

func (f *Flow) resetByteCounts() {
	f.BytesIn = 0
	f.BytesOut = 0
}

// flowTable is the per-bond, bounded flow table. It is never shared across
// bonds and is guarded by the owning bond's flows mutex.
type flowTable struct {
	flows map[int32]*Flow
}

func newFlowTable() *flowTable {
	return &flowTable{flows: make(map[int32]*Flow)}
}

func (t *flowTable) size() int { return len(t.flows) }

// forgetOldest evicts the single flow with the greatest idle age, per
// spec.md §9's resolution of the original's drifting argmax computation.
func (t *flowTable) forgetOldest(now int64) (*Flow, bool) {
	var oldest *Flow
	var maxAge int64 = -1
	for _, f := range t.flows {
		age := f.age(now)
		if age > maxAge {
			maxAge = age
			oldest = f
		}
	}
	if oldest == nil {
		return nil, false
	}
	delete(t.flows, oldest.ID)
	return oldest, true
}

// forgetOlderThan deletes every flow whose idle age exceeds maxAge, calling
// onEvict for each (used to decrement the owning path's assignedFlowCount).
func (t *flowTable) forgetOlderThan(maxAge int64, now int64, onEvict func(*Flow)) {
	for id, f := range t.flows {
		if f.age(now) > maxAge {
			delete(t.flows, id)
			if onEvict != nil {
				onEvict(f)
			}
		}
	}
}

func (t *flowTable) resetByteCounts() {
	for _, f := range t.flows {
		f.resetByteCounts()
	}
}
