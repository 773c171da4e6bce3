package synth

import (
	"math"

	"github.com/cbegin/audial-go/internal/patch"
	"github.com/cbegin/audial-go/internal/rtlog"
)

// AutomationPoolSize bounds concurrent parameter ramps per channel.
const AutomationPoolSize = 16

type automation struct {
	id        patch.ParamID
	start     float32
	end       float32
	startTick int64
	endTick   int64
	active    bool
}

var expCurveFloor = math.Exp2(-10)

// Interpolate returns the value of a ramp on id at factor in [0, 1]. Cutoff
// parameters follow an exponential curve. factor <= 0 yields start and
// factor >= 1 yields end exactly.
func Interpolate(id patch.ParamID, start, end float32, factor float64) float32 {
	if factor <= 0 {
		return start
	}
	if factor >= 1 {
		return end
	}
	if id.IsCutoff() {
		factor = (math.Exp2(10*factor-10) - expCurveFloor) / (1 - expCurveFloor)
	}
	return start + float32(factor*float64(end-start))
}

// startAutomation replaces any ramp already running on id.
func (s *Synth) startAutomation(id patch.ParamID, end float32, now, ramp int64) {
	s.cancelAutomation(id)
	for i := range s.automations {
		a := &s.automations[i]
		if a.active {
			continue
		}
		*a = automation{
			id:        id,
			start:     s.patch[id],
			end:       end,
			startTick: now,
			endTick:   now + ramp,
			active:    true,
		}
		return
	}
	s.automationDrops.Add(1)
	s.log.Log(rtlog.Record{Code: rtlog.AutomationPoolFull, Channel: int32(s.channel), Tick: now, A: int64(id)})
}

func (s *Synth) cancelAutomation(id patch.ParamID) {
	for i := range s.automations {
		if s.automations[i].active && s.automations[i].id == id {
			s.automations[i].active = false
		}
	}
}

// runAutomations advances every active ramp to now.
func (s *Synth) runAutomations(now int64) {
	for i := range s.automations {
		a := &s.automations[i]
		if !a.active {
			continue
		}
		if now >= a.endTick {
			a.active = false
			s.setParam(a.id, a.end)
			continue
		}
		factor := float64(now-a.startTick) / float64(a.endTick-a.startTick)
		s.setParam(a.id, Interpolate(a.id, a.start, a.end, factor))
	}
}

// ActiveAutomations counts running ramps.
func (s *Synth) ActiveAutomations() int {
	n := 0
	for i := range s.automations {
		if s.automations[i].active {
			n++
		}
	}
	return n
}
