package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register rtmidi driver

	"github.com/cbegin/drumgrid-go"
	"github.com/cbegin/drumgrid-go/internal/config"
	"github.com/cbegin/drumgrid-go/internal/input"
	"github.com/cbegin/drumgrid-go/internal/pattern"
	"github.com/cbegin/drumgrid-go/internal/tui"
	"github.com/cbegin/drumgrid-go/internal/voice"
)

var logger = slog.Default()

func initLogger(level string, w io.Writer) {
	var lv slog.Level
	if err := lv.UnmarshalText([]byte(level)); err != nil {
		lv = slog.LevelInfo
	}
	logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lv}))
	slog.SetDefault(logger)
}

func main() {
	defaultPath, _ := config.ConfigPath()
	var (
		configPath = flag.String("config", defaultPath, "path to config.json")
		bpm        = flag.Int("bpm", 0, "tempo in beats per minute (overrides config)")
		volume     = flag.Float64("volume", -1, "initial mix level 0..1 (overrides config)")
		sampleRate = flag.Int("sample-rate", 0, "output sample rate (overrides config)")
		midiOut    = flag.String("midi-out", "", "MIDI output port to mirror hits to")
		midiIn     = flag.String("midi-in", "", "MIDI pad controller input port")
		serialPort = flag.String("serial", "", "serial keypad device")
		serialBaud = flag.Int("baud", 0, "serial baud rate")
		patternIn  = flag.String("pattern", "", "pattern file to load at startup")
		renderOut  = flag.String("render", "", "render the pattern to a WAV file and exit")
		loops      = flag.Int("loops", 4, "loops to render with -render")
		headless   = flag.Bool("headless", false, "play without the terminal UI, reading keys from stdin")
		listPorts  = flag.Bool("list", false, "list MIDI and serial ports and exit")
		logLevel   = flag.String("log-level", "", "debug|info|warn|error (overrides config)")
		logFile    = flag.String("log-file", "", "write logs to a file")
		saveConfig = flag.Bool("save-config", false, "write the effective config back to -config")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	applyFlags(cfg, *bpm, *volume, *sampleRate, *midiOut, *serialPort, *serialBaud, *patternIn, *logLevel)

	logOut, closeLog, err := openLog(*logFile, !*headless && *renderOut == "" && !*listPorts)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer closeLog()
	initLogger(cfg.LogLevel, logOut)

	if err := run(cfg, *configPath, *saveConfig, *midiIn, *renderOut, *loops, *headless, *listPorts); err != nil {
		logger.Error("drumgrid failed", "err", err)
		fmt.Fprintln(os.Stderr, err)
		closeLog()
		os.Exit(1)
	}
}

func applyFlags(cfg *config.Config, bpm int, volume float64, sampleRate int, midiOut, serialPort string, baud int, patternFile, logLevel string) {
	if bpm != 0 {
		cfg.BPM = bpm
	}
	if volume >= 0 {
		cfg.MixVolume = volume
	}
	if sampleRate != 0 {
		cfg.SampleRate = sampleRate
	}
	if midiOut != "" {
		cfg.MIDIOut = midiOut
	}
	if serialPort != "" {
		cfg.SerialPort = serialPort
	}
	if baud != 0 {
		cfg.SerialBaud = baud
	}
	if patternFile != "" {
		cfg.PatternFile = patternFile
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
}

// openLog picks the log destination. The terminal UI owns stderr, so logs go
// to a file next to the config unless one was given.
func openLog(path string, tuiOwnsTerminal bool) (io.Writer, func(), error) {
	if path == "" && !tuiOwnsTerminal {
		return os.Stderr, func() {}, nil
	}
	if path == "" {
		dir, err := config.ConfigDir()
		if err != nil {
			return io.Discard, func() {}, nil
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, nil, err
		}
		path = filepath.Join(dir, "drumgrid.log")
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { _ = f.Close() }, nil
}

func run(cfg *config.Config, configPath string, saveConfig bool, midiIn, renderOut string, loops int, headless, listPorts bool) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if saveConfig {
		if err := cfg.Save(configPath); err != nil {
			return err
		}
		logger.Info("config saved", "path", configPath)
	}
	if listPorts {
		return printPorts(os.Stdout)
	}

	km, err := keymap(cfg.Keys)
	if err != nil {
		return err
	}
	if cfg.MIDIOut != "" || midiIn != "" {
		defer midi.CloseDriver()
	}
	opts := []drumgrid.Option{drumgrid.WithLogger(logger), drumgrid.WithKeymap(km)}
	if renderOut != "" {
		opts = append(opts, drumgrid.WithOutput(nil))
	}
	if cfg.MIDIOut != "" && renderOut == "" {
		layers, err := midiLayers(cfg.MIDIOut, cfg.Instruments)
		if err != nil {
			return err
		}
		opts = append(opts, layers...)
	}

	session, err := drumgrid.NewSession(cfg, opts...)
	if err != nil {
		return err
	}
	defer session.Close()

	if cfg.PatternFile != "" {
		if p, err := pattern.Load(cfg.PatternFile); err == nil {
			if err := session.LoadPattern(p); err != nil {
				return err
			}
			logger.Info("pattern loaded", "path", cfg.PatternFile, "id", p.ID, "name", p.Name)
		} else if !os.IsNotExist(err) || renderOut != "" {
			return err
		}
	}

	if renderOut != "" {
		return render(session, renderOut, loops)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if cfg.SerialPort != "" {
		port, err := input.OpenSerial(cfg.SerialPort, cfg.SerialBaud)
		if err != nil {
			return err
		}
		defer port.Close()
		logger.Info("serial keypad opened", "device", cfg.SerialPort, "baud", cfg.SerialBaud)
		go feed(ctx, session.Input(), port, "serial")
	}
	if midiIn != "" {
		in, err := midi.FindInPort(midiIn)
		if err != nil {
			return err
		}
		stopListening, err := input.ListenMIDI(in, session.Input(), input.DefaultPadBase, session.Steps())
		if err != nil {
			return err
		}
		defer stopListening()
	}

	save := func() error {
		path := cfg.PatternFile
		if path == "" {
			dir, err := config.ConfigDir()
			if err != nil {
				return err
			}
			path = filepath.Join(dir, "pattern.json")
		}
		return session.Pattern(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))).Save(path)
	}

	if headless {
		if err := session.Start(ctx); err != nil {
			return err
		}
		go feed(ctx, session.Input(), os.Stdin, "stdin")
		<-ctx.Done()
		return session.Stop()
	}
	return tui.Run(ctx, session, save)
}

func keymap(k config.KeysConfig) (input.Keymap, error) {
	if len(k.Rows) == 0 && k.VolumeUp == "" && k.VolumeDown == "" {
		return input.DefaultKeymap(), nil
	}
	rows := k.Rows
	if len(rows) == 0 {
		rows = input.DefaultRows
	}
	up, down := rune(input.DefaultVolumeUp), rune(input.DefaultVolumeDown)
	if r, _ := utf8.DecodeRuneInString(k.VolumeUp); k.VolumeUp != "" {
		up = r
	}
	if r, _ := utf8.DecodeRuneInString(k.VolumeDown); k.VolumeDown != "" {
		down = r
	}
	return input.NewKeymap(rows, up, down)
}

// midiLayers mirrors each row onto a General MIDI drum note.
func midiLayers(port string, instruments int) ([]drumgrid.Option, error) {
	out, err := midi.FindOutPort(port)
	if err != nil {
		return nil, fmt.Errorf("midi out %q: %w", port, err)
	}
	send, err := midi.SendTo(out)
	if err != nil {
		return nil, fmt.Errorf("midi out %q: %w", port, err)
	}
	notes := voice.DefaultMIDINotes()
	var opts []drumgrid.Option
	for i := 0; i < instruments; i++ {
		t := voice.NewMIDI(send, voice.GMChannel, notes[i%len(notes)], 100, 50*time.Millisecond)
		opts = append(opts, drumgrid.WithLayer(i, t))
	}
	logger.Info("midi out opened", "port", port)
	return opts, nil
}

func feed(ctx context.Context, src *input.Source, r io.Reader, name string) {
	if err := src.Feed(ctx, r, logger); err != nil && ctx.Err() == nil {
		logger.Warn("input feed ended", "component", "input", "source", name, "err", err)
	}
}

func render(session *drumgrid.Session, path string, loops int) error {
	samples, err := session.Render(loops)
	if err != nil {
		return err
	}
	wav := drumgrid.EncodeWAVFloat32LE(samples, session.SampleRate(), 2)
	if err := os.WriteFile(path, wav, 0644); err != nil {
		return err
	}
	logger.Info("pattern rendered", "path", path, "loops", loops, "frames", len(samples)/2)
	return nil
}

func printPorts(w io.Writer) error {
	fmt.Fprintln(w, "MIDI out:")
	for _, p := range midi.GetOutPorts() {
		fmt.Fprintf(w, "  %s\n", p)
	}
	fmt.Fprintln(w, "MIDI in:")
	for _, p := range midi.GetInPorts() {
		fmt.Fprintf(w, "  %s\n", p)
	}
	ports, err := input.SerialPorts()
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "Serial:")
	for _, p := range ports {
		fmt.Fprintf(w, "  %s\n", p)
	}
	midi.CloseDriver()
	return nil
}
