package notify

import (
	"sync"
	"time"

	"github.com/gmsas95/medremind/internal/alarm"
)

const pendingTTL = 24 * time.Hour

// pendingAlarms tracks alarms awaiting an answer, by reminder id
type pendingAlarms struct {
	mu     sync.Mutex
	alarms map[int64]pendingAlarm
}

type pendingAlarm struct {
	alarm     alarm.Alarm
	messageID int
}

func newPendingAlarms() *pendingAlarms {
	return &pendingAlarms{alarms: make(map[int64]pendingAlarm)}
}

func (p *pendingAlarms) put(a alarm.Alarm, messageID int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for id, old := range p.alarms {
		if a.FiredAt.Sub(old.alarm.FiredAt) > pendingTTL {
			delete(p.alarms, id)
		}
	}
	p.alarms[a.Reminder.ID] = pendingAlarm{alarm: a, messageID: messageID}
}

func (p *pendingAlarms) take(id int64) (pendingAlarm, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pa, ok := p.alarms[id]
	if ok {
		delete(p.alarms, id)
	}
	return pa, ok
}

func (p *pendingAlarms) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.alarms)
}
