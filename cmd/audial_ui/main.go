// Command audial_ui is a patch editor: edit synth parameters while playing
// the patch from the computer keyboard.
package main

import (
	"errors"
	"flag"
	"io/fs"
	"log"
	"log/slog"
	"os"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/cbegin/audial-go"
	"github.com/cbegin/audial-go/internal/audio"
	"github.com/cbegin/audial-go/internal/patch"
	"github.com/cbegin/audial-go/internal/scope"
)

func main() {
	var (
		bankPath     = flag.String("bank", "patches.toml", "patch bank to edit; created on first save")
		patchName    = flag.String("patch", "", "patch to open (default: the first in the bank)")
		sampleRate   = flag.Int("sample-rate", 48000, "output sample rate")
		bufferFrames = flag.Int("buffer", 512, "frames per audio callback")
		debug        = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	bank, err := loadBank(*bankPath, logger)
	if err != nil {
		log.Fatal(err)
	}
	idx := 0
	if *patchName != "" {
		idx = -1
		for i, name := range bank.Names() {
			if name == *patchName {
				idx = i
			}
		}
		if idx < 0 {
			bank.Put(*patchName, patch.Default())
			idx = len(bank.Entries) - 1
		}
	}
	if len(bank.Entries) == 0 {
		bank.Put("init", patch.Default())
	}

	an := scope.NewAnalyzer(*sampleRate)
	ac, err := audial.NewContext(
		audial.WithSampleRate(*sampleRate),
		audial.WithBufferFrames(*bufferFrames),
		audial.WithBackend(audio.Ebiten),
		audial.WithPatch(editChannel, bank.Entries[idx].Patch),
		audial.WithOutputTap(an.Tap),
		audial.WithLogger(logger),
	)
	if err != nil {
		log.Fatal(err)
	}
	if err := ac.Start(); err != nil {
		log.Fatal(err)
	}
	defer ac.Stop()

	g := newGame(ac, an, bank, *bankPath, idx, logger)
	ebiten.SetWindowSize(windowW, windowH)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowSizeLimits(minWindowW, minWindowH, -1, -1)
	ebiten.SetWindowTitle("audial patch editor - " + *bankPath)
	if err := ebiten.RunGame(g); err != nil {
		log.Fatal(err)
	}
}

// loadBank reads path, or starts an empty bank when it does not exist yet.
func loadBank(path string, logger *slog.Logger) (*patch.Bank, error) {
	bank, err := patch.LoadBankFile(path, logger)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Info("new bank", "path", path)
		return &patch.Bank{}, nil
	}
	return bank, err
}
