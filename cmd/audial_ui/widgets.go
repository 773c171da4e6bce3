package main

import (
	"image"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
)

const (
	textScale = 2
	charW     = 7 * textScale
	lineH     = 14 * textScale
)

var (
	bgColor         = color.RGBA{192, 192, 192, 255}
	panelColor      = color.RGBA{192, 192, 192, 255}
	borderColor     = color.RGBA{128, 128, 128, 255}
	highlightColor  = color.RGBA{0, 0, 128, 255}
	bevelLight      = color.RGBA{255, 255, 255, 255}
	bevelDarker     = color.RGBA{64, 64, 64, 255}
	sunkenBgColor   = color.RGBA{24, 24, 32, 255}
	sliderFillColor = color.RGBA{0, 0, 128, 255}
	heldKeyColor    = color.RGBA{80, 200, 255, 255}
)

func fillRect(dst *ebiten.Image, r image.Rectangle, c color.Color) {
	ebitenutil.DrawRect(dst, float64(r.Min.X), float64(r.Min.Y), float64(r.Dx()), float64(r.Dy()), c)
}

func drawPanel(screen *ebiten.Image, rect image.Rectangle) {
	fillRect(screen, rect, panelColor)
	drawBorder(screen, rect)
}

func drawSunkenPanel(screen *ebiten.Image, rect image.Rectangle) {
	fillRect(screen, rect, sunkenBgColor)
	drawSunkenBorder(screen, rect)
}

func drawDarkPanel(screen *ebiten.Image, rect image.Rectangle) {
	fillRect(screen, rect, color.Black)
	drawSunkenBorder(screen, rect)
}

// drawBorder draws a raised bevel: light top/left, dark bottom/right.
func drawBorder(screen *ebiten.Image, rect image.Rectangle) {
	x, y := float64(rect.Min.X), float64(rect.Min.Y)
	w, h := float64(rect.Dx()), float64(rect.Dy())
	ebitenutil.DrawRect(screen, x, y, w-1, 1, bevelLight)
	ebitenutil.DrawRect(screen, x, y+1, 1, h-2, bevelLight)
	ebitenutil.DrawRect(screen, x, y+h-1, w, 1, bevelDarker)
	ebitenutil.DrawRect(screen, x+w-1, y, 1, h, bevelDarker)
	ebitenutil.DrawRect(screen, x+1, y+h-2, w-3, 1, borderColor)
	ebitenutil.DrawRect(screen, x+w-2, y+1, 1, h-3, borderColor)
}

func drawSunkenBorder(screen *ebiten.Image, rect image.Rectangle) {
	x, y := float64(rect.Min.X), float64(rect.Min.Y)
	w, h := float64(rect.Dx()), float64(rect.Dy())
	ebitenutil.DrawRect(screen, x, y, w-1, 1, borderColor)
	ebitenutil.DrawRect(screen, x, y+1, 1, h-2, borderColor)
	ebitenutil.DrawRect(screen, x, y+h-1, w, 1, bevelLight)
	ebitenutil.DrawRect(screen, x+w-1, y, 1, h, bevelLight)
	ebitenutil.DrawRect(screen, x+1, y+1, w-3, 1, bevelDarker)
	ebitenutil.DrawRect(screen, x+1, y+2, 1, h-4, bevelDarker)
}

// drawTrack draws a horizontal slider groove filled to frac with a knob.
func drawTrack(screen *ebiten.Image, track image.Rectangle, frac float64, centerMark bool) {
	x, y, w := track.Min.X, track.Min.Y+track.Dy()/2-4, track.Dx()
	if w < 20 {
		return
	}
	ebitenutil.DrawRect(screen, float64(x), float64(y), float64(w), 8, bevelDarker)
	ebitenutil.DrawRect(screen, float64(x), float64(y), float64(w-1), 1, borderColor)
	ebitenutil.DrawRect(screen, float64(x), float64(y), 1, 7, borderColor)
	fillW := int(float64(w) * clamp(frac, 0, 1))
	if centerMark {
		ebitenutil.DrawRect(screen, float64(x+w/2)-1, float64(y-2), 2, 12, borderColor)
	} else if fillW > 2 {
		ebitenutil.DrawRect(screen, float64(x+1), float64(y+1), float64(fillW-1), 6, sliderFillColor)
	}
	knobX := min(max(x+fillW-5, x-5), x+w-5)
	knob := image.Rect(knobX, y-4, knobX+10, y+12)
	fillRect(screen, knob, panelColor)
	drawBorder(screen, knob)
}

// trackFrac is the slider position of mouse x on track.
func trackFrac(mx int, track image.Rectangle) float64 {
	if track.Dx() <= 0 {
		return 0
	}
	return clamp(float64(mx-track.Min.X)/float64(track.Dx()), 0, 1)
}

func (g *game) drawButton(screen *ebiten.Image, rect image.Rectangle, label string) {
	drawPanel(screen, rect)
	x := rect.Min.X + (rect.Dx()-len([]rune(label))*charW)/2
	y := rect.Min.Y + (rect.Dy()-lineH)/2
	g.drawText(screen, label, x, y)
}

// drawText renders msg with the debug font, scaled and embossed. Rendered
// strings are cached until the cache grows large.
func (g *game) drawText(screen *ebiten.Image, msg string, x, y int) {
	if msg == "" {
		return
	}
	img := g.textCache[msg]
	if img == nil {
		img = ebiten.NewImage(max(1, len([]rune(msg))*7), 14)
		ebitenutil.DebugPrintAt(img, msg, 0, 0)
		if len(g.textCache) > 3000 {
			g.textCache = make(map[string]*ebiten.Image, 1024)
		}
		g.textCache[msg] = img
	}
	shadow := &ebiten.DrawImageOptions{}
	shadow.GeoM.Scale(textScale, textScale)
	shadow.GeoM.Translate(float64(x+2), float64(y+2))
	shadow.ColorScale.Scale(0, 0, 0, 1)
	screen.DrawImage(img, shadow)
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(textScale, textScale)
	op.GeoM.Translate(float64(x), float64(y))
	screen.DrawImage(img, op)
}

func shortenEnd(s string, maxChars int) string {
	r := []rune(s)
	if len(r) <= maxChars {
		return s
	}
	if maxChars <= 3 {
		return string(r[:max(0, maxChars)])
	}
	return string(r[:maxChars-3]) + "..."
}

func clamp(v, lo, hi float64) float64 {
	return min(max(v, lo), hi)
}

func pointInRect(x, y int, rect image.Rectangle) bool {
	return image.Pt(x, y).In(rect)
}
