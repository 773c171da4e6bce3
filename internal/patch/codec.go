package patch

import (
	"errors"
	"fmt"
)

// Tree is the decoded form of a TOML table.
type Tree = map[string]any

// Encode returns p as a tree keyed by parameter name. Waveforms are written
// by enum name, everything else as a number.
func (p *Patch) Encode() Tree {
	t := make(Tree, NumParams)
	for id := ParamID(0); id < NumParams; id++ {
		switch id {
		case Osc1Waveform, Osc2Waveform:
			t[id.String()] = p.Waveform(id).String()
		default:
			t[id.String()] = float64(p[id])
		}
	}
	return t
}

// Decode reads a patch tree. Trees carrying an integer "version" key use the
// legacy field layout and are transcoded. Parameters absent from a current
// layout tree keep their defaults and are reported in missing; FM-only
// parameters are not reported when the patch is not an FM patch.
func Decode(t Tree) (p Patch, missing []ParamID, err error) {
	if v, ok := t["version"]; ok {
		version, ok := asInt(v)
		if !ok {
			return p, nil, fmt.Errorf("patch version %v is not an integer", v)
		}
		p, err = decodeLegacy(t, version)
		return p, nil, err
	}

	p = Default()
	for id := ParamID(0); id < NumParams; id++ {
		raw, ok := t[id.String()]
		if !ok {
			continue
		}
		switch id {
		case Osc1Waveform, Osc2Waveform:
			s, ok := raw.(string)
			if !ok {
				return p, nil, fmt.Errorf("param %s: want waveform name, got %T", id, raw)
			}
			w, werr := ParseWaveform(s)
			if werr != nil {
				return p, nil, fmt.Errorf("param %s: %w", id, werr)
			}
			p[id] = float32(w)
		default:
			f, ok := asFloat(raw)
			if !ok {
				return p, nil, fmt.Errorf("param %s: want number, got %T", id, raw)
			}
			p[id] = float32(f)
		}
	}
	for id := ParamID(0); id < NumParams; id++ {
		if _, ok := t[id.String()]; ok {
			continue
		}
		if id.IsFM() && !p.Bool(FM) {
			continue
		}
		missing = append(missing, id)
	}
	return p, missing, nil
}

var errLegacyField = errors.New("legacy patch field")

func decodeLegacy(t Tree, version int) (Patch, error) {
	p := Default()
	var errs []error
	num := func(key string, id ParamID) {
		f, ok := asFloat(t[key])
		if !ok {
			errs = append(errs, fmt.Errorf("%w %q missing or not a number", errLegacyField, key))
			return
		}
		p[id] = float32(f)
	}
	env := func(key string, e Envelope) {
		sub, ok := t[key].(Tree)
		if !ok {
			errs = append(errs, fmt.Errorf("%w %q missing", errLegacyField, key))
			return
		}
		var spec ADSR
		fields := []struct {
			name string
			dst  *float32
		}{
			{"attack_time", &spec.Attack},
			{"decay_time", &spec.Decay},
			{"sustain_level", &spec.Sustain},
			{"release_time", &spec.Release},
		}
		for _, f := range fields {
			v, ok := asFloat(sub[f.name])
			if !ok {
				errs = append(errs, fmt.Errorf("%w %s.%s missing", errLegacyField, key, f.name))
				continue
			}
			*f.dst = float32(v)
		}
		p.SetADSR(e, spec)
	}

	num("gain_factor", Gain)
	if version >= 4 {
		switch v := t["mono"].(type) {
		case bool:
			if v {
				p[Mono] = 1
			} else {
				p[Mono] = 0
			}
		default:
			num("mono", Mono)
		}
	}
	if version >= 1 {
		p[Osc1Waveform] = float32(Square)
		p[Osc2Waveform] = float32(Square)
		if s, ok := t["osc1_waveform"].(string); ok {
			if w, err := ParseWaveform(s); err == nil {
				p[Osc1Waveform] = float32(w)
			}
		}
		if s, ok := t["osc2_waveform"].(string); ok {
			if w, err := ParseWaveform(s); err == nil {
				p[Osc2Waveform] = float32(w)
			}
		}
		num("detune", Detune)
		num("osc_fader", OscFader)
	}
	num("cutoff_freq", Cutoff)
	num("cutoff_k", Peak)
	if version >= 3 {
		num("hpf_cutoff_freq", HpfCutoff)
		num("hpf_peak", HpfPeak)
	}
	num("pitch_lfo_gain", PitchLFOGain)
	num("pitch_lfo_freq", PitchLFOFreq)
	num("cutoff_lfo_gain", CutoffLFOGain)
	num("cutoff_lfo_freq", CutoffLFOFreq)
	env("amp_env_spec", AmpEnv)
	num("cutoff_env_gain", CutoffEnvGain)
	env("cutoff_env_spec", CutoffEnv)
	if version >= 2 {
		num("pitch_env_gain", PitchEnvGain)
		env("pitch_env_spec", PitchEnv)
	}
	return p, errors.Join(errs...)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int64:
		return int(n), true
	case int:
		return n, true
	case float64:
		if n == float64(int(n)) {
			return int(n), true
		}
	}
	return 0, false
}
