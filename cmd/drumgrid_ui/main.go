package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/color"
	"log"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/cbegin/drumgrid-go"
	"github.com/cbegin/drumgrid-go/internal/config"
	"github.com/cbegin/drumgrid-go/internal/pattern"
	"github.com/cbegin/drumgrid-go/internal/sequencer"
)

const (
	windowW = 820
	windowH = 520

	textScale = 2
	charW     = 7 * textScale
	lineH     = 14 * textScale

	cellSize = 56
	cellGap  = 8
	labelW   = 120
)

var (
	bgColor        = color.RGBA{192, 192, 192, 255}
	panelColor     = color.RGBA{192, 192, 192, 255}
	borderColor    = color.RGBA{128, 128, 128, 255}
	activeColor    = color.RGBA{200, 40, 90, 255}
	playheadColor  = color.RGBA{255, 210, 80, 255}

	bevelLight  = color.RGBA{255, 255, 255, 255}
	bevelDarker = color.RGBA{64, 64, 64, 255}

	sunkenBgColor   = color.RGBA{24, 24, 32, 255}
	sliderFillColor = color.RGBA{0, 0, 128, 255}
)

const ringBufLen = 8192

// scope keeps the most recent mono output for the waveform view.
type scope struct {
	mu       sync.Mutex
	ring     []float32
	writePos int
}

func newScope() *scope { return &scope{ring: make([]float32, ringBufLen)} }

// Tap is called from the audio thread. Keep it minimal: just copy into ring.
func (s *scope) Tap(samples []float32) {
	s.mu.Lock()
	for i := 0; i+1 < len(samples); i += 2 {
		s.ring[s.writePos] = (samples[i] + samples[i+1]) * 0.5
		s.writePos = (s.writePos + 1) % ringBufLen
	}
	s.mu.Unlock()
}

// Snapshot copies the last n samples.
func (s *scope) Snapshot(n int) []float32 {
	if n > ringBufLen {
		n = ringBufLen
	}
	out := make([]float32, n)
	s.mu.Lock()
	start := (s.writePos - n + ringBufLen) % ringBufLen
	for i := range out {
		out[i] = s.ring[(start+i)%ringBufLen]
	}
	s.mu.Unlock()
	return out
}

type uiLayout struct {
	play, slower, faster, save image.Rectangle
	grid                       image.Rectangle
	volume                     image.Rectangle
	scope                      image.Rectangle
	status                     image.Rectangle
}

type game struct {
	session     *drumgrid.Session
	scope       *scope
	ctx         context.Context
	patternPath string

	draggingVolume bool
	status         string
	statusErr      bool
	chars          []rune

	textCache map[string]*ebiten.Image
}

func (g *game) layoutRects() uiLayout {
	var l uiLayout
	l.play = image.Rect(16, 16, 136, 56)
	l.slower = image.Rect(148, 16, 196, 56)
	l.faster = image.Rect(204, 16, 252, 56)
	l.save = image.Rect(264, 16, 384, 56)
	rows, steps := g.session.Instruments(), g.session.Steps()
	l.grid = image.Rect(16, 72, 16+labelW+steps*(cellSize+cellGap)+cellGap, 72+rows*(cellSize+cellGap)+cellGap)
	l.volume = image.Rect(16, l.grid.Max.Y+12, 400, l.grid.Max.Y+44)
	l.scope = image.Rect(16, l.volume.Max.Y+12, windowW-16, windowH-56)
	l.status = image.Rect(16, windowH-48, windowW-16, windowH-12)
	return l
}

func (g *game) cellRect(l uiLayout, row, step int) image.Rectangle {
	x := l.grid.Min.X + labelW + cellGap + step*(cellSize+cellGap)
	y := l.grid.Min.Y + cellGap + row*(cellSize+cellGap)
	return image.Rect(x, y, x+cellSize, y+cellSize)
}

func (g *game) Update() error {
	g.handleKeys()
	g.handleMouse()
	return nil
}

func (g *game) handleKeys() {
	if inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		g.togglePlayback()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyBracketRight) {
		g.changeTempo(10)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyBracketLeft) {
		g.changeTempo(-10)
	}
	g.chars = ebiten.AppendInputChars(g.chars[:0])
	for _, r := range g.chars {
		switch r {
		case ' ', '[', ']':
			continue
		}
		g.session.HandleSymbol(r)
	}
}

func (g *game) handleMouse() {
	mx, my := ebiten.CursorPosition()
	l := g.layoutRects()

	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		switch {
		case pointInRect(mx, my, l.play):
			g.togglePlayback()
			return
		case pointInRect(mx, my, l.slower):
			g.changeTempo(-10)
			return
		case pointInRect(mx, my, l.faster):
			g.changeTempo(10)
			return
		case pointInRect(mx, my, l.save):
			g.savePattern()
			return
		case pointInRect(mx, my, l.volume):
			g.draggingVolume = true
		case pointInRect(mx, my, l.grid):
			for row := 0; row < g.session.Instruments(); row++ {
				for step := 0; step < g.session.Steps(); step++ {
					if pointInRect(mx, my, g.cellRect(l, row, step)) {
						_ = g.session.Toggle(row, step)
						return
					}
				}
			}
		}
	}
	if g.draggingVolume {
		if ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft) {
			g.updateVolumeFromMouse(mx, l.volume)
		} else {
			g.draggingVolume = false
		}
	}
}

func (g *game) togglePlayback() {
	if g.session.State() == sequencer.Running {
		if err := g.session.Stop(); err != nil {
			g.setError(err.Error())
			return
		}
		g.setStatus("Stopped")
		return
	}
	if err := g.session.Start(g.ctx); err != nil {
		g.setError(err.Error())
		return
	}
	g.setStatus("Playing")
}

func (g *game) changeTempo(delta int) {
	if err := g.session.SetTempo(g.session.Tempo() + delta); err != nil {
		g.setError(err.Error())
		return
	}
	g.setStatus(fmt.Sprintf("Tempo %d bpm", g.session.Tempo()))
}

func (g *game) savePattern() {
	if err := g.session.Pattern("drumgrid").Save(g.patternPath); err != nil {
		g.setError(err.Error())
		return
	}
	g.setStatus("Saved " + g.patternPath)
}

func (g *game) updateVolumeFromMouse(mx int, rect image.Rectangle) {
	trackX := rect.Min.X + 8
	trackW := rect.Dx() - 16
	if trackW <= 0 {
		return
	}
	g.session.SetVolume(clamp(float64(mx-trackX)/float64(trackW), 0, 1))
}

func (g *game) Draw(screen *ebiten.Image) {
	screen.Fill(bgColor)
	l := g.layoutRects()

	g.drawButton(screen, l.play, g.playButtonLabel())
	g.drawButton(screen, l.slower, "-")
	g.drawButton(screen, l.faster, "+")
	g.drawButton(screen, l.save, "Save")
	g.drawText(screen, fmt.Sprintf("%d bpm", g.session.Tempo()), l.save.Max.X+16, l.save.Min.Y+6)

	g.drawSunkenPanel(screen, l.grid)
	g.drawGrid(screen, l)
	g.drawVolumeSlider(screen, l.volume)
	g.drawSunkenPanel(screen, l.scope)
	g.drawScope(screen, l.scope)
	g.drawSunkenPanel(screen, l.status)
	g.drawText(screen, g.status, l.status.Min.X+8, l.status.Min.Y+4)
}

func (g *game) drawGrid(screen *ebiten.Image, l uiLayout) {
	snap := g.session.Snapshot()
	names := g.session.Names()
	head := -1
	if g.session.State() == sequencer.Running && snap.Steps() > 0 {
		head = (g.session.Cursor() + snap.Steps() - 1) % snap.Steps()
	}
	for row := 0; row < snap.Instruments(); row++ {
		r := g.cellRect(l, row, 0)
		if row < len(names) {
			g.drawText(screen, names[row], l.grid.Min.X+8, r.Min.Y+(cellSize-lineH)/2)
		}
		for step := 0; step < snap.Steps(); step++ {
			c := g.cellRect(l, row, step)
			fill := color.Color(panelColor)
			if snap.Active(row, step) {
				fill = activeColor
			}
			ebitenutil.DrawRect(screen, float64(c.Min.X), float64(c.Min.Y), float64(c.Dx()), float64(c.Dy()), fill)
			if step == head {
				ebitenutil.DrawRect(screen, float64(c.Min.X), float64(c.Max.Y-6), float64(c.Dx()), 6, playheadColor)
			}
			drawBorder(screen, c)
		}
	}
}

func (g *game) drawScope(screen *ebiten.Image, rect image.Rectangle) {
	inner := image.Rect(rect.Min.X+8, rect.Min.Y+8, rect.Max.X-8, rect.Max.Y-8)
	width, height := inner.Dx(), inner.Dy()
	if width < 2 || height < 4 {
		return
	}
	samples := g.scope.Snapshot(width * 4)
	midY := float64(inner.Min.Y + height/2)
	ebitenutil.DrawRect(screen, float64(inner.Min.X), midY, float64(width), 1, color.RGBA{40, 44, 58, 100})
	gain := float64(height/2 - 2)
	waveColor := color.RGBA{80, 200, 255, 220}
	prevY := midY - float64(samples[0])*gain
	for px := 1; px < width; px++ {
		y := midY - float64(samples[px*4])*gain
		ebitenutil.DrawLine(screen, float64(inner.Min.X+px-1), prevY, float64(inner.Min.X+px), y, waveColor)
		prevY = y
	}
}

func (g *game) drawVolumeSlider(screen *ebiten.Image, rect image.Rectangle) {
	trackX := rect.Min.X + 8
	trackY := rect.Min.Y + rect.Dy()/2 - 4
	trackW := rect.Dx() - 16
	ebitenutil.DrawRect(screen, float64(trackX), float64(trackY), float64(trackW), 8, bevelDarker)
	ebitenutil.DrawRect(screen, float64(trackX), float64(trackY), float64(trackW-1), 1, borderColor)
	ebitenutil.DrawRect(screen, float64(trackX), float64(trackY), 1, 7, borderColor)
	fillW := int(float64(trackW) * g.session.Volume())
	if fillW > 1 {
		ebitenutil.DrawRect(screen, float64(trackX+1), float64(trackY+1), float64(fillW-1), 6, sliderFillColor)
	}
	knobX := trackX + fillW - 6
	knobRect := image.Rect(knobX, rect.Min.Y+2, knobX+12, rect.Max.Y-2)
	ebitenutil.DrawRect(screen, float64(knobRect.Min.X), float64(knobRect.Min.Y), float64(knobRect.Dx()), float64(knobRect.Dy()), panelColor)
	drawBorder(screen, knobRect)
	g.drawText(screen, fmt.Sprintf("Vol %3.0f%%", g.session.Volume()*100), rect.Max.X+16, rect.Min.Y+2)
}

func (g *game) playButtonLabel() string {
	if g.session.State() == sequencer.Running {
		return "Stop"
	}
	return "Play"
}

func (g *game) setError(msg string) {
	g.status = msg
	g.statusErr = true
}

func (g *game) setStatus(msg string) {
	g.status = msg
	g.statusErr = false
}

func (g *game) Layout(outsideW, outsideH int) (int, int) { return windowW, windowH }

func (g *game) drawSunkenPanel(screen *ebiten.Image, rect image.Rectangle) {
	ebitenutil.DrawRect(screen, float64(rect.Min.X), float64(rect.Min.Y), float64(rect.Dx()), float64(rect.Dy()), sunkenBgColor)
	drawSunkenBorder(screen, rect)
}

func (g *game) drawButton(screen *ebiten.Image, rect image.Rectangle, label string) {
	ebitenutil.DrawRect(screen, float64(rect.Min.X), float64(rect.Min.Y), float64(rect.Dx()), float64(rect.Dy()), panelColor)
	drawBorder(screen, rect)
	textW := len([]rune(label)) * charW
	x := rect.Min.X + (rect.Dx()-textW)/2
	y := rect.Min.Y + (rect.Dy()-lineH)/2
	g.drawText(screen, label, x, y)
}

// drawBorder draws a raised 3D bevel (highlight top/left, shadow bottom/right).
func drawBorder(screen *ebiten.Image, rect image.Rectangle) {
	x := float64(rect.Min.X)
	y := float64(rect.Min.Y)
	w := float64(rect.Dx())
	h := float64(rect.Dy())
	ebitenutil.DrawRect(screen, x, y, w-1, 1, bevelLight)
	ebitenutil.DrawRect(screen, x, y+1, 1, h-2, bevelLight)
	ebitenutil.DrawRect(screen, x, y+h-1, w, 1, bevelDarker)
	ebitenutil.DrawRect(screen, x+w-1, y, 1, h, bevelDarker)
	ebitenutil.DrawRect(screen, x+1, y+h-2, w-3, 1, borderColor)
	ebitenutil.DrawRect(screen, x+w-2, y+1, 1, h-3, borderColor)
}

// drawSunkenBorder draws a sunken 3D bevel (shadow top/left, highlight bottom/right).
func drawSunkenBorder(screen *ebiten.Image, rect image.Rectangle) {
	x := float64(rect.Min.X)
	y := float64(rect.Min.Y)
	w := float64(rect.Dx())
	h := float64(rect.Dy())
	ebitenutil.DrawRect(screen, x, y, w-1, 1, borderColor)
	ebitenutil.DrawRect(screen, x, y+1, 1, h-2, borderColor)
	ebitenutil.DrawRect(screen, x, y+h-1, w, 1, bevelLight)
	ebitenutil.DrawRect(screen, x+w-1, y, 1, h, bevelLight)
	ebitenutil.DrawRect(screen, x+1, y+1, w-3, 1, bevelDarker)
	ebitenutil.DrawRect(screen, x+1, y+2, 1, h-4, bevelDarker)
}

func (g *game) drawText(screen *ebiten.Image, msg string, x int, y int) {
	if msg == "" {
		return
	}
	img := g.textCache[msg]
	if img == nil {
		w := max(1, len([]rune(msg))*7)
		img = ebiten.NewImage(w, 14)
		ebitenutil.DebugPrintAt(img, msg, 0, 0)
		if len(g.textCache) > 3000 {
			g.textCache = make(map[string]*ebiten.Image, 256)
		}
		g.textCache[msg] = img
	}
	opS := &ebiten.DrawImageOptions{}
	opS.GeoM.Scale(textScale, textScale)
	opS.GeoM.Translate(float64(x+2), float64(y+2))
	opS.ColorScale.Scale(0, 0, 0, 1)
	screen.DrawImage(img, opS)
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(textScale, textScale)
	op.GeoM.Translate(float64(x), float64(y))
	if g.statusErr && msg == g.status {
		op.ColorScale.Scale(1, 0.4, 0.4, 1)
	}
	screen.DrawImage(img, op)
}

func clamp(v, minV, maxV float64) float64 {
	if v < minV {
		return minV
	}
	if v > maxV {
		return maxV
	}
	return v
}

func pointInRect(x, y int, rect image.Rectangle) bool {
	return x >= rect.Min.X && x < rect.Max.X && y >= rect.Min.Y && y < rect.Max.Y
}

func main() {
	defaultPath, _ := config.ConfigPath()
	var (
		configPath  = flag.String("config", defaultPath, "path to config.json")
		patternPath = flag.String("pattern", "pattern.json", "pattern file to load and save")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	sc := newScope()
	session, err := drumgrid.NewSession(cfg, drumgrid.WithSampleTap(sc.Tap))
	if err != nil {
		log.Fatal(err)
	}
	defer session.Close()
	if p, err := pattern.Load(*patternPath); err == nil {
		if err := session.LoadPattern(p); err != nil {
			log.Printf("pattern %s: %v", *patternPath, err)
		}
	}

	g := &game{
		session:     session,
		scope:       sc,
		ctx:         context.Background(),
		patternPath: *patternPath,
		status:      "Ready",
		textCache:   make(map[string]*ebiten.Image, 256),
	}
	ebiten.SetWindowSize(windowW, windowH)
	ebiten.SetWindowTitle("drumgrid")
	if err := ebiten.RunGame(g); err != nil {
		log.Fatal(err)
	}
}
