package main

import (
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"golang.design/x/clipboard"

	"github.com/cbegin/audial-go"
	"github.com/cbegin/audial-go/internal/beatevent"
	"github.com/cbegin/audial-go/internal/effects"
	"github.com/cbegin/audial-go/internal/event"
	"github.com/cbegin/audial-go/internal/patch"
	"github.com/cbegin/audial-go/internal/scope"
	"github.com/cbegin/audial-go/internal/synth"
)

const (
	windowW    = 1100
	windowH    = 760
	minWindowW = 1040
	minWindowH = 700

	editChannel = 0
	octaveMin   = 0
	octaveMax   = 8
)

// pianoKeys plays one octave from the home row, black keys on the row above.
var pianoKeys = [...]ebiten.Key{
	ebiten.KeyA, ebiten.KeyW, ebiten.KeyS, ebiten.KeyE, ebiten.KeyD, ebiten.KeyF, ebiten.KeyT,
	ebiten.KeyG, ebiten.KeyY, ebiten.KeyH, ebiten.KeyU, ebiten.KeyJ, ebiten.KeyK,
}

const pianoLabels = "awsedftgyhujk"

var eqBandLabels = [effects.EQBands]string{"Lo", "LoM", "Mid", "HiM", "Hi"}

type heldNote struct {
	note int
	id   int32
}

// game edits the patch of one synth channel while it plays. Update is the
// only goroutine that adds events to the context.
type game struct {
	ac       *audial.Context
	analyzer *scope.Analyzer
	log      *slog.Logger

	bank     *patch.Bank
	bankPath string
	patchIdx int
	name     string
	patch    patch.Patch

	held   [len(pianoKeys)]*heldNote
	nextID int32
	octave int
	volume float64

	paramScroll int
	dragParam   patch.ParamID
	dragEQ      int
	dragCtl     int // 0 none, 1 octave, 2 volume

	clipOnce sync.Once
	clipOK   bool

	status    string
	statusErr bool

	scopeImg *ebiten.Image
	specBins []float64
	wavePeak float64

	textCache map[string]*ebiten.Image
	viewW     int
	viewH     int
}

func newGame(ac *audial.Context, an *scope.Analyzer, bank *patch.Bank, bankPath string, idx int, logger *slog.Logger) *game {
	g := &game{
		ac:        ac,
		analyzer:  an,
		log:       logger,
		bank:      bank,
		bankPath:  bankPath,
		octave:    4,
		volume:    1,
		dragParam: -1,
		dragEQ:    -1,
		textCache: make(map[string]*ebiten.Image, 1024),
		viewW:     windowW,
		viewH:     windowH,
	}
	g.selectPatch(idx, false)
	g.setStatus("Ready: play with " + pianoLabels + ", z/x octave")
	return g
}

func (g *game) Update() error {
	g.handleKeys()
	g.handleMouse()
	return nil
}

func (g *game) Draw(screen *ebiten.Image) {
	screen.Fill(bgColor)
	l := g.layoutRects()

	drawSunkenPanel(screen, l.params)
	drawDarkPanel(screen, l.scope)
	drawPanel(screen, l.eq)
	drawPanel(screen, l.piano)
	drawSunkenPanel(screen, l.status)

	g.drawParams(screen, l.params)
	g.drawScope(screen, l.scope)
	g.drawEQ(screen, l.eq)
	g.drawPiano(screen, l.piano)

	g.drawButton(screen, l.copy, "Copy")
	g.drawButton(screen, l.paste, "Paste")
	g.drawButton(screen, l.save, "Save")
	g.drawButton(screen, l.next, shortenEnd(g.name, (l.next.Dx()-16)/charW))
	g.drawLabeledTrack(screen, l.octave, fmt.Sprintf("Oct %d", g.octave), float64(g.octave-octaveMin)/float64(octaveMax-octaveMin), true)
	g.drawLabeledTrack(screen, l.volume, fmt.Sprintf("Vol %d%%", int(g.volume*100+0.5)), g.volume, false)
	g.drawStatus(screen, l.status)
}

func (g *game) Layout(outsideW, outsideH int) (int, int) {
	g.viewW = max(outsideW, minWindowW)
	g.viewH = max(outsideH, minWindowH)
	return g.viewW, g.viewH
}

// --- input ---

func (g *game) handleKeys() {
	if ebiten.IsKeyPressed(ebiten.KeyControl) || ebiten.IsKeyPressed(ebiten.KeyMeta) {
		switch {
		case inpututil.IsKeyJustPressed(ebiten.KeyC):
			g.copyPatch()
		case inpututil.IsKeyJustPressed(ebiten.KeyV):
			g.pastePatch()
		case inpututil.IsKeyJustPressed(ebiten.KeyS):
			g.saveBank()
		}
		return
	}
	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeyZ):
		g.octave = max(g.octave-1, octaveMin)
	case inpututil.IsKeyJustPressed(ebiten.KeyX):
		g.octave = min(g.octave+1, octaveMax)
	case inpututil.IsKeyJustPressed(ebiten.KeySpace):
		g.allNotesOff()
	case inpututil.IsKeyJustPressed(ebiten.KeyTab):
		g.selectPatch(g.patchIdx+1, true)
	}
	for i, k := range pianoKeys {
		if inpututil.IsKeyJustPressed(k) {
			g.noteOn(i)
		} else if inpututil.IsKeyJustReleased(k) {
			g.noteOff(i)
		}
	}
}

func (g *game) handleMouse() {
	mx, my := ebiten.CursorPosition()
	l := g.layoutRects()

	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		switch {
		case pointInRect(mx, my, l.copy):
			g.copyPatch()
		case pointInRect(mx, my, l.paste):
			g.pastePatch()
		case pointInRect(mx, my, l.save):
			g.saveBank()
		case pointInRect(mx, my, l.next):
			g.selectPatch(g.patchIdx+1, true)
		case pointInRect(mx, my, l.octave):
			g.dragCtl = 1
		case pointInRect(mx, my, l.volume):
			g.dragCtl = 2
		case pointInRect(mx, my, l.eq):
			g.dragEQ = g.eqBandAt(mx, l.eq)
		case pointInRect(mx, my, l.params):
			g.dragParam = g.paramAt(my, l.params)
		}
	}
	if !ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft) {
		g.dragCtl = 0
		g.dragEQ = -1
		g.dragParam = -1
	}
	switch g.dragCtl {
	case 1:
		g.octave = octaveMin + int(trackFrac(mx, g.ctlTrack(l.octave))*float64(octaveMax-octaveMin)+0.5)
	case 2:
		g.setVolume(trackFrac(mx, g.ctlTrack(l.volume)))
	}
	if g.dragEQ >= 0 {
		g.dragEQBand(my, l.eq)
	}
	if g.dragParam >= 0 {
		g.setParam(g.dragParam, g.dragParam.FromUnit(trackFrac(mx, g.paramTrack(l.params, 0))))
	}

	if _, wy := ebiten.Wheel(); wy != 0 && pointInRect(mx, my, l.params) {
		maxScroll := max(0, int(patch.NumParams)-g.visibleParams(l.params))
		g.paramScroll = min(max(g.paramScroll-int(wy*2), 0), maxScroll)
	}
}

// --- engine ---

func (g *game) send(e event.Event) bool {
	if err := g.ac.AddEvent(e); err != nil {
		g.setError(err.Error())
		return false
	}
	return true
}

func (g *game) noteOn(key int) {
	note := beatevent.C0 + 12*g.octave + key
	if note > 127 {
		return
	}
	g.nextID++
	if g.send(event.NewNoteOn(editChannel, g.ac.TickTime(), note, 0.8, g.nextID)) {
		g.held[key] = &heldNote{note: note, id: g.nextID}
		g.setStatus("Note " + beatevent.NoteName(note))
	}
}

func (g *game) noteOff(key int) {
	h := g.held[key]
	if h == nil {
		return
	}
	if g.send(event.NewNoteOff(editChannel, g.ac.TickTime(), h.note, h.id)) {
		g.held[key] = nil
	}
}

func (g *game) allNotesOff() {
	if g.send(event.NewAllNotesOff(editChannel, g.ac.TickTime())) {
		g.held = [len(pianoKeys)]*heldNote{}
		g.setStatus("All notes off")
	}
}

func (g *game) setParam(id patch.ParamID, v float32) {
	if g.patch.Get(id) == v {
		return
	}
	if g.send(event.NewSynthParam(editChannel, g.ac.TickTime(), id, v, 0)) {
		g.patch.Set(id, v)
		g.setStatus(fmt.Sprintf("%s: %s", id, formatParam(id, v)))
	}
}

// loadPatch replaces every parameter of the playing channel with p.
func (g *game) loadPatch(p patch.Patch) {
	now := g.ac.TickTime()
	for id := patch.ParamID(0); id < patch.NumParams; id++ {
		if !g.send(event.NewSynthParam(editChannel, now, id, p.Get(id), 0)) {
			return
		}
	}
	g.patch = p
}

func (g *game) selectPatch(idx int, send bool) {
	if len(g.bank.Entries) == 0 {
		g.bank.Put("init", patch.Default())
	}
	idx %= len(g.bank.Entries)
	e := g.bank.Entries[idx]
	if send {
		g.loadPatch(e.Patch)
		g.setStatus("Patch " + e.Name)
	} else {
		g.patch = e.Patch
	}
	g.patchIdx, g.name = idx, e.Name
}

func (g *game) setVolume(v float64) {
	if v == g.volume {
		return
	}
	if g.send(event.NewSetGain(g.ac.TickTime(), float32(v))) {
		g.volume = v
	}
}

func (g *game) clipboardReady() bool {
	g.clipOnce.Do(func() {
		if err := clipboard.Init(); err != nil {
			g.log.Warn("clipboard unavailable", "err", err)
			return
		}
		g.clipOK = true
	})
	return g.clipOK
}

func (g *game) copyPatch() {
	if !g.clipboardReady() {
		g.setError("clipboard unavailable")
		return
	}
	data, err := patch.Marshal(&g.patch)
	if err != nil {
		g.setError(err.Error())
		return
	}
	clipboard.Write(clipboard.FmtText, data)
	g.setStatus("Copied " + g.name)
}

func (g *game) pastePatch() {
	if !g.clipboardReady() {
		g.setError("clipboard unavailable")
		return
	}
	data := clipboard.Read(clipboard.FmtText)
	if len(data) == 0 {
		g.setError("clipboard is empty")
		return
	}
	p, err := patch.Unmarshal(data)
	if err != nil {
		g.setError(err.Error())
		return
	}
	g.loadPatch(p)
	g.setStatus("Pasted into " + g.name)
}

func (g *game) saveBank() {
	g.bank.Put(g.name, g.patch)
	if err := patch.SaveBankFile(g.bankPath, g.bank); err != nil {
		g.setError(err.Error())
		return
	}
	g.log.Info("bank saved", "path", g.bankPath, "patch", g.name)
	g.setStatus("Saved " + g.bankPath)
}

func (g *game) setError(msg string) {
	g.status, g.statusErr = msg, true
}

func (g *game) setStatus(msg string) {
	g.status, g.statusErr = msg, false
}

// --- layout ---

type uiLayout struct {
	params, scope, eq, piano, status image.Rectangle
	copy, paste, save, next          image.Rectangle
	octave, volume                   image.Rectangle
}

func (g *game) layoutRects() uiLayout {
	w, h := g.viewW, g.viewH
	pad, rowH, statusH := 20, 44, 40

	statusTop := h - pad - statusH
	controlsTop := statusTop - 8 - rowH
	contentBottom := controlsTop - 12

	paramsRect := image.Rect(pad, pad, pad+560, contentBottom)
	rightX := paramsRect.Max.X + 12
	pianoRect := image.Rect(rightX, contentBottom-120, w-pad, contentBottom)
	eqRect := image.Rect(rightX, pianoRect.Min.Y-12-130, w-pad, pianoRect.Min.Y-12)
	scopeRect := image.Rect(rightX, pad, w-pad, eqRect.Min.Y-12)

	x := pad
	button := func(width int) image.Rectangle {
		r := image.Rect(x, controlsTop, x+width, controlsTop+rowH)
		x += width + 12
		return r
	}
	l := uiLayout{
		params: paramsRect, scope: scopeRect, eq: eqRect, piano: pianoRect,
		copy: button(90), paste: button(100), save: button(90), next: button(200),
		octave: button(220),
	}
	l.volume = image.Rect(x, controlsTop, w-pad, controlsTop+rowH)
	l.status = image.Rect(pad, statusTop, w-pad, statusTop+statusH)
	return l
}

func (g *game) ctlTrack(rect image.Rectangle) image.Rectangle {
	return image.Rect(rect.Min.X+116, rect.Min.Y, rect.Max.X-16, rect.Max.Y)
}

func (g *game) drawLabeledTrack(screen *ebiten.Image, rect image.Rectangle, label string, frac float64, centerMark bool) {
	drawPanel(screen, rect)
	g.drawText(screen, label, rect.Min.X+8, rect.Min.Y+8)
	drawTrack(screen, g.ctlTrack(rect), frac, centerMark)
}

func (g *game) drawStatus(screen *ebiten.Image, rect image.Rectangle) {
	msg := "Status: " + g.status
	if g.statusErr {
		msg = "Status: ERROR - " + g.status
	}
	msg += fmt.Sprintf("   voices %d", g.ac.ActiveVoices(editChannel))
	g.drawText(screen, shortenEnd(msg, max(8, (rect.Dx()-16)/charW)), rect.Min.X+8, rect.Min.Y+6)
}

// --- parameter list ---

const (
	paramRowH   = lineH + 6
	paramLabelW = 16 * charW
	paramValueW = 8 * charW
)

func (g *game) visibleParams(rect image.Rectangle) int {
	return max(1, (rect.Dy()-16)/paramRowH)
}

func (g *game) paramTrack(rect image.Rectangle, row int) image.Rectangle {
	y := rect.Min.Y + 8 + row*paramRowH
	return image.Rect(rect.Min.X+8+paramLabelW+paramValueW, y, rect.Max.X-20, y+lineH)
}

func (g *game) paramAt(my int, rect image.Rectangle) patch.ParamID {
	row := (my - rect.Min.Y - 8) / paramRowH
	if row < 0 || row >= g.visibleParams(rect) {
		return -1
	}
	id := patch.ParamID(g.paramScroll + row)
	if !id.Valid() {
		return -1
	}
	return id
}

func (g *game) drawParams(screen *ebiten.Image, rect image.Rectangle) {
	rows := g.visibleParams(rect)
	for row := 0; row < rows; row++ {
		id := patch.ParamID(g.paramScroll + row)
		if !id.Valid() {
			break
		}
		y := rect.Min.Y + 8 + row*paramRowH
		if id == g.dragParam {
			ebitenutil.DrawRect(screen, float64(rect.Min.X+4), float64(y-2), float64(rect.Dx()-8), float64(paramRowH-2), highlightColor)
		}
		v := g.patch.Get(id)
		g.drawText(screen, id.String(), rect.Min.X+8, y)
		g.drawText(screen, formatParam(id, v), rect.Min.X+8+paramLabelW, y)
		drawTrack(screen, g.paramTrack(rect, row), id.ToUnit(v), false)
	}
}

func formatParam(id patch.ParamID, v float32) string {
	switch id.Info().Kind {
	case patch.KindBool:
		if v >= 0.5 {
			return "on"
		}
		return "off"
	case patch.KindWaveform:
		return patch.WaveformFromFloat(v).String()
	case patch.KindOddInt:
		return fmt.Sprintf("%d", int(v))
	}
	return fmt.Sprintf("%.4g", v)
}

// --- EQ ---

func (g *game) eqBandAt(mx int, rect image.Rectangle) int {
	bandW := (rect.Dx() - 16) / effects.EQBands
	if bandW <= 0 {
		return -1
	}
	band := (mx - rect.Min.X - 8) / bandW
	if band < 0 || band >= effects.EQBands {
		return -1
	}
	return band
}

func (g *game) eqTrack(rect image.Rectangle) (top, height int) {
	return rect.Min.Y + 8 + lineH, rect.Dy() - 16 - lineH
}

func (g *game) dragEQBand(my int, rect image.Rectangle) {
	top, height := g.eqTrack(rect)
	if height <= 0 {
		return
	}
	gain := (1 - clamp(float64(my-top)/float64(height), 0, 1)) * 2
	g.ac.SetEQBand(g.dragEQ, float32(gain))
	g.setStatus(fmt.Sprintf("EQ %s: %.2f", eqBandLabels[g.dragEQ], gain))
}

func (g *game) drawEQ(screen *ebiten.Image, rect image.Rectangle) {
	bandW := (rect.Dx() - 16) / effects.EQBands
	top, height := g.eqTrack(rect)
	if bandW < 10 || height <= 0 {
		return
	}
	for band := 0; band < effects.EQBands; band++ {
		bx := rect.Min.X + 8 + band*bandW
		bw := bandW - 4
		g.drawText(screen, eqBandLabels[band], bx+(bw-len(eqBandLabels[band])*charW)/2, rect.Min.Y+6)
		ebitenutil.DrawRect(screen, float64(bx+bw/2-2), float64(top), 4, float64(height), bevelDarker)
		ebitenutil.DrawRect(screen, float64(bx), float64(top+height/2), float64(bw), 1, borderColor)

		frac := clamp(float64(g.ac.EQBand(band))/2, 0, 1)
		knobY := top + height - int(frac*float64(height)) - 4
		knob := image.Rect(bx+2, knobY, bx+bw-2, knobY+8)
		fillRect(screen, knob, panelColor)
		drawBorder(screen, knob)
	}
}

// --- keyboard ---

// blackKey marks the semitones drawn as black keys.
var blackKey = [len(pianoKeys)]bool{1: true, 3: true, 6: true, 8: true, 10: true}

func (g *game) drawPiano(screen *ebiten.Image, rect image.Rectangle) {
	inner := image.Rect(rect.Min.X+8, rect.Min.Y+8, rect.Max.X-8, rect.Max.Y-8)
	whites := 0
	for _, b := range blackKey {
		if !b {
			whites++
		}
	}
	keyW := inner.Dx() / whites

	white := 0
	for i := range pianoKeys {
		if blackKey[i] {
			continue
		}
		r := image.Rect(inner.Min.X+white*keyW, inner.Min.Y, inner.Min.X+(white+1)*keyW-2, inner.Max.Y)
		c := color.Color(color.White)
		if g.held[i] != nil {
			c = heldKeyColor
		}
		fillRect(screen, r, c)
		drawBorder(screen, r)
		g.drawText(screen, string(pianoLabels[i]), r.Min.X+(r.Dx()-charW)/2, r.Max.Y-lineH-4)
		white++
	}
	white = 0
	for i := range pianoKeys {
		if !blackKey[i] {
			white++
			continue
		}
		x := inner.Min.X + white*keyW - keyW/3
		r := image.Rect(x, inner.Min.Y, x+keyW*2/3, inner.Min.Y+inner.Dy()*3/5)
		c := color.Color(color.Black)
		if g.held[i] != nil {
			c = heldKeyColor
		}
		fillRect(screen, r, c)
		g.drawText(screen, string(pianoLabels[i]), r.Min.X+(r.Dx()-charW)/2, r.Max.Y-lineH-4)
	}
	g.drawText(screen, fmt.Sprintf("C%d", g.octave), inner.Min.X+4, inner.Min.Y+4)
}

// --- scope ---

func (g *game) drawScope(screen *ebiten.Image, rect image.Rectangle) {
	inner := image.Rect(rect.Min.X+8, rect.Min.Y+8, rect.Max.X-8, rect.Max.Y-8)
	width, height := inner.Dx(), inner.Dy()
	if width <= 0 || height <= 0 {
		return
	}
	if g.scopeImg == nil || g.scopeImg.Bounds().Dx() != width || g.scopeImg.Bounds().Dy() != height {
		g.scopeImg = ebiten.NewImage(width, height)
	}
	g.scopeImg.Fill(color.RGBA{14, 16, 22, 255})

	// The device has up to one buffer queued that the listener has not heard.
	heard := g.ac.TickTime() - int64(g.ac.BufferFrames())
	snap := g.analyzer.Snapshot(scope.FFTSize, heard)

	waveH := int(float64(height) * 0.45)
	g.drawWaveform(g.scopeImg, snap, width, waveH)
	ebitenutil.DrawRect(g.scopeImg, 0, float64(waveH), float64(width), 1, color.RGBA{50, 54, 68, 180})
	g.drawSpectrumBars(g.scopeImg, snap, width, height-waveH-1, waveH+1)

	op := &ebiten.DrawImageOptions{}
	op.GeoM.Translate(float64(inner.Min.X), float64(inner.Min.Y))
	screen.DrawImage(g.scopeImg, op)

	used := 0
	for ch := 0; ch < g.ac.Channels(); ch++ {
		used += g.ac.ActiveVoices(ch)
	}
	g.drawText(screen, fmt.Sprintf("%d/%d voices", used, g.ac.Channels()*synth.NumVoices), inner.Min.X+4, inner.Min.Y+4)
}

func (g *game) drawWaveform(dst *ebiten.Image, samples []float32, width, height int) {
	if len(samples) < 2 || width < 2 || height < 4 {
		return
	}
	midY := height / 2
	ebitenutil.DrawRect(dst, 0, float64(midY), float64(width), 1, color.RGBA{40, 44, 58, 100})

	// Auto-gain with fast attack and slow release.
	peak := 0.0
	for _, s := range samples {
		peak = max(peak, float64(max(s, -s)))
	}
	target := max(peak, 0.01)
	if target > g.wavePeak {
		g.wavePeak = g.wavePeak*0.3 + target*0.7
	} else {
		g.wavePeak = max(g.wavePeak*0.995+target*0.005, 0.01)
	}
	gain := float64(midY-2) / g.wavePeak

	trigger := scope.FindZeroCrossing(samples, len(samples)/4)
	visible := max(len(samples)-trigger, 2)
	waveColor := color.RGBA{80, 200, 255, 220}
	prevY := midY - int(float64(samples[trigger])*gain)
	for px := 1; px < width; px++ {
		si := min(trigger+px*visible/width, len(samples)-1)
		y := midY - int(float64(samples[si])*gain)
		ebitenutil.DrawLine(dst, float64(px-1), float64(prevY), float64(px), float64(y), waveColor)
		prevY = y
	}
}

func (g *game) drawSpectrumBars(dst *ebiten.Image, samples []float32, width, height, yOffset int) {
	if width < 4 || height < 4 {
		return
	}
	numBars := min(max(width/3, 16), 256)
	bars := scope.Spectrum(samples, g.analyzer.SampleRate(), numBars, 18000)
	if bars == nil {
		return
	}
	g.specBins = scope.Smooth(g.specBins, bars)

	barW := float64(width) / float64(numBars)
	for i, v := range g.specBins {
		barH := max(v*float64(height-4), 1)
		x := float64(i) * barW
		y := float64(yOffset) + float64(height-2) - barH
		r, gr, b := spectrumColor(v)
		ebitenutil.DrawRect(dst, x+1, y, barW-1, barH, color.RGBA{r, gr, b, 220})
	}
}

// spectrumColor runs blue to green to orange as v rises.
func spectrumColor(v float64) (uint8, uint8, uint8) {
	if v < 0.33 {
		t := v / 0.33
		return uint8(30 + 20*t), uint8(80 + 120*t), uint8(200 + 55*t)
	}
	if v < 0.66 {
		t := (v - 0.33) / 0.33
		return uint8(50 + 140*t), uint8(200 + 30*t), uint8(255 - 100*t)
	}
	t := (v - 0.66) / 0.34
	return uint8(190 + 65*t), uint8(230 - 100*t), uint8(155 - 100*t)
}
