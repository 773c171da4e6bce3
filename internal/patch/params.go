package patch

import (
	"math"
	"strings"
)

// ParamID indexes a Patch.
type ParamID int

const (
	Gain ParamID = iota
	Mono
	Osc1Waveform
	Osc2Waveform
	Detune
	OscFader
	Unison
	UnisonDetune
	Cutoff
	Peak
	HpfCutoff
	HpfPeak
	Portamento
	PitchLFOGain
	PitchLFOFreq
	CutoffLFOGain
	CutoffLFOFreq
	AmpEnvAttack
	AmpEnvDecay
	AmpEnvSustain
	AmpEnvRelease
	CutoffEnvGain
	CutoffEnvAttack
	CutoffEnvDecay
	CutoffEnvSustain
	CutoffEnvRelease
	PitchEnvGain
	PitchEnvAttack
	PitchEnvDecay
	PitchEnvSustain
	PitchEnvRelease
	FM
	FMOsc2Level
	FMOsc2Ratio
	DelayGain
	DelayTime
	DelayFeedback

	NumParams
)

// ParamInfo describes the editable range of a parameter.
type ParamInfo struct {
	Name    string
	Min     float32
	Max     float32
	Default float32
	// Kind is used by editors to pick a widget.
	Kind ParamKind
}

type ParamKind uint8

const (
	KindFloat ParamKind = iota
	KindBool
	KindWaveform
	KindOddInt
)

var paramInfo = [NumParams]ParamInfo{
	Gain:             {"Gain", 0, 1, 0.7, KindFloat},
	Mono:             {"Mono", 0, 1, 0, KindBool},
	Osc1Waveform:     {"Osc1Waveform", 0, float32(NumWaveforms - 1), float32(Saw), KindWaveform},
	Osc2Waveform:     {"Osc2Waveform", 0, float32(NumWaveforms - 1), float32(Saw), KindWaveform},
	Detune:           {"Detune", 0, 1, 0, KindFloat},
	OscFader:         {"OscFader", 0, 1, 0, KindFloat},
	Unison:           {"Unison", 1, MaxUnison, 1, KindOddInt},
	UnisonDetune:     {"UnisonDetune", 0, 100, 10, KindFloat},
	Cutoff:           {"Cutoff", 0, 24000, 12000, KindFloat},
	Peak:             {"Peak", 0, 10, 1, KindFloat},
	HpfCutoff:        {"HpfCutoff", 0, 24000, 0, KindFloat},
	HpfPeak:          {"HpfPeak", 0, 3.99, 0, KindFloat},
	Portamento:       {"Portamento", 0, 1, 0, KindFloat},
	PitchLFOGain:     {"PitchLFOGain", 0, 1, 0, KindFloat},
	PitchLFOFreq:     {"PitchLFOFreq", 0, 30, 0, KindFloat},
	CutoffLFOGain:    {"CutoffLFOGain", 0, 1, 0, KindFloat},
	CutoffLFOFreq:    {"CutoffLFOFreq", 0, 30, 0, KindFloat},
	AmpEnvAttack:     {"AmpEnvAttack", 0, 5, 0.01, KindFloat},
	AmpEnvDecay:      {"AmpEnvDecay", 0, 5, 0.1, KindFloat},
	AmpEnvSustain:    {"AmpEnvSustain", 0, 1, 1, KindFloat},
	AmpEnvRelease:    {"AmpEnvRelease", 0, 5, 0.1, KindFloat},
	CutoffEnvGain:    {"CutoffEnvGain", 0, 24000, 0, KindFloat},
	CutoffEnvAttack:  {"CutoffEnvAttack", 0, 5, 0.01, KindFloat},
	CutoffEnvDecay:   {"CutoffEnvDecay", 0, 5, 0.1, KindFloat},
	CutoffEnvSustain: {"CutoffEnvSustain", 0, 1, 1, KindFloat},
	CutoffEnvRelease: {"CutoffEnvRelease", 0, 5, 0.1, KindFloat},
	PitchEnvGain:     {"PitchEnvGain", 0, 1, 0, KindFloat},
	PitchEnvAttack:   {"PitchEnvAttack", 0, 5, 0.01, KindFloat},
	PitchEnvDecay:    {"PitchEnvDecay", 0, 5, 0.1, KindFloat},
	PitchEnvSustain:  {"PitchEnvSustain", 0, 1, 1, KindFloat},
	PitchEnvRelease:  {"PitchEnvRelease", 0, 5, 0.1, KindFloat},
	FM:               {"FM", 0, 1, 0, KindBool},
	FMOsc2Level:      {"FMOsc2Level", 0, 1, 0.5, KindFloat},
	FMOsc2Ratio:      {"FMOsc2Ratio", 0.25, 8, 1, KindFloat},
	DelayGain:        {"DelayGain", 0, 1, 0, KindFloat},
	DelayTime:        {"DelayTime", 0, MaxDelaySeconds, 0.25, KindFloat},
	DelayFeedback:    {"DelayFeedback", 0, 0.95, 0.3, KindFloat},
}

// MaxUnison is the largest supported unison count.
const MaxUnison = 7

// MaxDelaySeconds bounds DelayTime so delay lines can be sized up front.
const MaxDelaySeconds = 0.5

// Info returns the metadata for id.
func (id ParamID) Info() ParamInfo {
	if id < 0 || id >= NumParams {
		return ParamInfo{Name: "Unknown"}
	}
	return paramInfo[id]
}

func (id ParamID) String() string { return id.Info().Name }

// Valid reports whether id names a real parameter.
func (id ParamID) Valid() bool { return id >= 0 && id < NumParams }

// IsCutoff reports whether automation of id should follow the exponential curve.
func (id ParamID) IsCutoff() bool { return id == Cutoff || id == HpfCutoff }

// IsFM reports whether id only matters to FM patches. Such params may be
// missing from older files without a warning.
func (id ParamID) IsFM() bool { return id == FMOsc2Level || id == FMOsc2Ratio }

// ParseParamID looks up a parameter by name, ignoring case.
func ParseParamID(name string) (ParamID, bool) {
	for i := ParamID(0); i < NumParams; i++ {
		if strings.EqualFold(paramInfo[i].Name, name) {
			return i, true
		}
	}
	return 0, false
}

// Clamp limits v to the range of id.
func (id ParamID) Clamp(v float32) float32 {
	info := id.Info()
	if v < info.Min {
		return info.Min
	}
	if v > info.Max {
		return info.Max
	}
	return v
}

// ToUnit maps v onto 0..1 across the range of id. Cutoffs use a log scale
// above 20 Hz so the low end gets most of the travel.
func (id ParamID) ToUnit(v float32) float64 {
	info := id.Info()
	if info.Max <= info.Min {
		return 0
	}
	v = id.Clamp(v)
	if id.IsCutoff() {
		if v <= cutoffUnitFloor {
			return 0
		}
		return math.Log(float64(v)/cutoffUnitFloor) / math.Log(float64(info.Max)/cutoffUnitFloor)
	}
	return float64(v-info.Min) / float64(info.Max-info.Min)
}

// FromUnit is the inverse of ToUnit. Bool, waveform and odd-int params snap
// to their nearest legal value.
func (id ParamID) FromUnit(u float64) float32 {
	info := id.Info()
	u = min(max(u, 0), 1)
	if id.IsCutoff() {
		if u == 0 {
			return 0
		}
		return id.Clamp(float32(cutoffUnitFloor * math.Pow(float64(info.Max)/cutoffUnitFloor, u)))
	}
	v := float64(info.Min) + u*float64(info.Max-info.Min)
	switch info.Kind {
	case KindBool, KindWaveform:
		v = math.Round(v)
	case KindOddInt:
		v = math.Round((v-1)/2)*2 + 1
	}
	return id.Clamp(float32(v))
}

const cutoffUnitFloor = 20
