package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"livecap/audio"
	"livecap/cache"
	"livecap/config"
	"livecap/log"
	"livecap/media"
	"livecap/render"
	"livecap/session"
	"livecap/syncgate"
	"livecap/transcriber"
)

var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	configFlag := flag.String("config", "", "config file path (default: OS config dir)")
	modeFlag := flag.String("mode", "", "processing mode: proxied, groq, or openai (overrides config)")
	sourceFlag := flag.String("source", "", "source language code or 'auto' (overrides config)")
	targetFlag := flag.String("target", "", "target language code, empty disables translation (overrides config)")
	videoFlag := flag.String("video", "", "URL of the playing video to caption")
	titleFlag := flag.String("title", "", "title of the playing video")
	deviceFlag := flag.String("device", "", "capture source name (default: first monitor source)")
	setupFlag := flag.Bool("setup", false, "pick the capture source interactively")
	exportFlag := flag.String("export", "", "write the caption cache as JSON to the given file and exit")
	clearFlag := flag.Bool("clear-cache", false, "clear the caption cache and exit")
	statsFlag := flag.Bool("stats", false, "print caption cache stats and exit")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	versionFlag := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("livecap %s\n", version)
		return 0
	}

	logPath, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		return 1
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}
	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: logging disabled: %v\n", err)
	}
	defer log.Close()

	configPath := *configFlag
	if configPath == "" {
		if configPath, err = config.DefaultPath(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if *modeFlag != "" {
		cfg.APIMode = config.APIMode(*modeFlag)
	}
	if *sourceFlag != "" {
		cfg.SourceLang = *sourceFlag
	}
	if *targetFlag != "" {
		cfg.TargetLang = *targetFlag
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	dataDir, err := cfg.EnsureDataDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	cfg.DataDir = dataDir

	store, err := cache.Open(filepath.Join(dataDir, "cache.db"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer store.Close()

	switch {
	case *exportFlag != "":
		return exportCache(store, *exportFlag)
	case *clearFlag:
		if err := store.Clear(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Println("Caption cache cleared.")
		return 0
	case *statsFlag:
		stats, err := store.Stats(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Printf("videos: %d\nsegments: %d\n", stats.Videos, stats.Segments)
		return 0
	}

	if *videoFlag == "" {
		fmt.Fprintln(os.Stderr, "Error: -video is required (the URL of the playing video)")
		return 1
	}

	audioCtx, err := audio.NewContext()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing audio: %v\n", err)
		return 1
	}
	defer audioCtx.Close()

	device, err := resolveDevice(audioCtx, *deviceFlag, *setupFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	registry := media.NewRegistry()
	source := media.NewSource(*videoFlag, *titleFlag, 0)
	source.Play()
	registry.Add(source)

	renderer := render.NewRenderer()

	var transport session.Transport
	if cfg.APIMode == config.ModeProxied {
		transport = transcriber.NewStream(cfg.BackendEndpoint, cfg.BackendSecret)
	}

	controller := session.NewController(session.Deps{
		Registry:  registry,
		Capture:   audio.NewCaptureSession(audioCtx),
		Processor: transcriber.NewDispatcher(cfg),
		Renderer:  renderer,
		Store:     store,
		Gate:      syncgate.New(cfg),
		Transport: transport,
		Config:    cfg,
		Device:    device,
	})

	if err := controller.Enable(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer controller.Disable()

	program := render.NewProgram()
	renderer.SetProgram(program)
	if _, err := program.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func exportCache(store *cache.Store, path string) int {
	data, err := store.Export(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Printf("Cache exported to %s\n", path)
	return 0
}

// resolveDevice picks the capture source: an explicit -device name, the
// interactive picker under -setup, or the first monitor source (the
// video's own audio) as the default.
func resolveDevice(ctx audio.Context, name string, setup bool) (*audio.DeviceInfo, error) {
	if setup {
		return audio.SelectDevice(ctx)
	}

	devices, err := ctx.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("no capture devices found")
	}

	if name != "" {
		for i := range devices {
			if strings.EqualFold(devices[i].Name, name) {
				return &devices[i], nil
			}
		}
		return nil, fmt.Errorf("capture device %q not found (run with -setup to list)", name)
	}

	for i := range devices {
		if audio.IsMonitor(devices[i].Name) {
			return &devices[i], nil
		}
	}
	return &devices[0], nil
}
