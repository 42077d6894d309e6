// animtool is a CLI utility for working with skeleton and animation assets.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Faultbox/skelkit/internal/config"
	"github.com/Faultbox/skelkit/internal/logger"
	"github.com/Faultbox/skelkit/pkg/anim"
	"github.com/Faultbox/skelkit/pkg/crowd"
	"github.com/Faultbox/skelkit/pkg/formats"
)

var cfg *config.Config

func main() {
	// Parse CLI flags first
	config.ParseFlags()

	// Load configuration
	var err error
	cfg, err = config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Sugar.Debugf("Config: %+v", cfg)

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	command := flag.Arg(0)
	args := flag.Args()[1:]

	switch command {
	case "info":
		cmdInfo(args)
	case "sample":
		cmdSample(args)
	case "optimise", "optimize":
		cmdOptimise(args)
	case "retarget":
		cmdRetarget(args)
	case "convert":
		cmdConvert(args)
	case "bench":
		cmdBench(args)
	case "pack":
		cmdPack(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`animtool - skeleton and animation asset utility

Usage:
  animtool <command> [options]

Commands:
  info <file>                           Show skeleton and animation statistics
  sample <file> <anim> -t <time>        Pose the skeleton and print bone transforms
  optimise <file> -o <out>              Strip redundant keyframes and tracks
  retarget <src> <dst> -o <out>         Copy animations onto another skeleton by bone name
  convert <in> <out>                    Convert between formats by extension
  bench <file> <anim> [-actors n]       Time parallel pose evaluation over many instances
  pack create <pack> <dir>              Build an asset pack from a directory
  pack list <pack>                      List pack contents
  pack extract <pack> <path> [outdir]   Extract file(s) from a pack

Supported formats: .skel .rig (read/write), .gltf .glb (read only)

Examples:
  animtool info character.skel
  animtool sample character.skel walk -t 0.5
  animtool optimise character.rig -o slim.rig
  animtool retarget mocap.gltf character.skel -o character_mocap.skel -anims walk,run
  animtool convert character.gltf character.rig
  animtool pack create assets.rigpack ./rigs`)
}

// loadSkeleton reads any supported skeleton format, picked by extension.
func loadSkeleton(path string) (*anim.Skeleton, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".skel":
		return formats.ParseSkelFile(path)
	case ".rig":
		return formats.LoadRig(path)
	case ".gltf", ".glb":
		return formats.ImportGLTFFile(path)
	default:
		return nil, fmt.Errorf("unsupported input format: %s", filepath.Ext(path))
	}
}

// saveSkeleton writes a skeleton in a writable format, picked by extension.
// Paths without an extension get the configured default format.
func saveSkeleton(skel *anim.Skeleton, path string) error {
	if filepath.Ext(path) == "" {
		path += "." + cfg.Tool.DefaultFormat
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".skel":
		return formats.WriteSkelFile(skel, path)
	case ".rig":
		return formats.SaveRig(skel, path)
	default:
		return fmt.Errorf("unsupported output format: %s (writable: .skel .rig)", filepath.Ext(path))
	}
}

func cmdInfo(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: animtool info <file>")
		os.Exit(1)
	}

	skel, err := loadSkeleton(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Skeleton:   %s\n", skel.Name())
	fmt.Printf("Bones:      %d (%d roots)\n", skel.BoneCount(), len(skel.RootBones()))
	fmt.Printf("Blend mode: %s\n", skel.BlendMode())
	fmt.Printf("Animations: %d\n", skel.AnimationCount())

	for _, a := range skel.Animations() {
		keyframes := 0
		for _, t := range a.NodeTracks() {
			keyframes += t.KeyFrameCount()
		}
		fmt.Printf("\n  %s\n", a.Name())
		fmt.Printf("    length:        %.3fs\n", a.Length())
		fmt.Printf("    node tracks:   %d (%d keyframes)\n", a.NodeTrackCount(), keyframes)
		if a.VertexTrackCount() > 0 {
			fmt.Printf("    vertex tracks: %d\n", a.VertexTrackCount())
		}
	}
}

func cmdSample(args []string) {
	fs := flag.NewFlagSet("sample", flag.ExitOnError)
	timePos := fs.Float64("t", -1, "Time position in seconds (omit to sweep the whole animation)")
	weight := fs.Float64("weight", 1.0, "Blend weight")
	fs.Parse(args)

	if fs.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "Usage: animtool sample <file> <animation> -t <time> [-weight w]")
		os.Exit(1)
	}

	skel, err := loadSkeleton(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	states := anim.NewAnimationStateSet()
	skel.InitAnimationState(states)
	st, err := states.AnimationState(fs.Arg(1))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Animation not found: %s\n", fs.Arg(1))
		os.Exit(1)
	}
	st.SetEnabled(true)
	st.SetWeight(float32(*weight))

	if *timePos >= 0 {
		samplePose(skel, states, st, float32(*timePos))
		return
	}

	// No time given, sweep the animation at the configured sample rate and
	// trace the root bones.
	rate := cfg.Tool.SampleRate
	if rate <= 0 {
		rate = 30
	}
	step := 1 / rate
	roots := skel.RootBones()
	fmt.Printf("%s, %.3fs at %g fps\n\n", fs.Arg(1), st.Length(), rate)
	for t := float32(0); t <= st.Length(); t += step {
		st.SetTimePosition(t)
		if err := skel.SetAnimationState(states); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%7.3f", t)
		for _, b := range roots {
			p := b.DerivedPosition()
			fmt.Printf("  %s(%.4f, %.4f, %.4f)", b.Name(), p.X, p.Y, p.Z)
		}
		fmt.Println()
	}
}

func samplePose(skel *anim.Skeleton, states *anim.AnimationStateSet, st *anim.AnimationState, timePos float32) {
	st.SetTimePosition(timePos)
	if err := skel.SetAnimationState(states); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%s @ %.3fs (weight %.2f)\n\n", st.Name(), st.TimePosition(), st.Weight())
	for _, b := range skel.Bones() {
		p := b.DerivedPosition()
		q := b.DerivedOrientation()
		s := b.DerivedScale()
		if cfg.Tool.Pretty {
			fmt.Printf("%-24s pos(%.4f, %.4f, %.4f)  rot(%.4f, %.4f, %.4f, %.4f)  scale(%.4f, %.4f, %.4f)\n",
				b.Name(), p.X, p.Y, p.Z, q.X, q.Y, q.Z, q.W, s.X, s.Y, s.Z)
		} else {
			fmt.Printf("%s %g %g %g %g %g %g %g %g %g %g\n",
				b.Name(), p.X, p.Y, p.Z, q.X, q.Y, q.Z, q.W, s.X, s.Y, s.Z)
		}
	}
}

func cmdOptimise(args []string) {
	fs := flag.NewFlagSet("optimise", flag.ExitOnError)
	out := fs.String("o", "", "Output file")
	keepIdentity := fs.Bool("keep-identity", false, "Preserve tracks that never move their bone")
	fs.Parse(args)

	if fs.NArg() < 1 || *out == "" {
		fmt.Fprintln(os.Stderr, "Usage: animtool optimise <file> -o <out> [-keep-identity]")
		os.Exit(1)
	}

	skel, err := loadSkeleton(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	type animStat struct {
		tracks    int
		keyframes int
	}
	before := make(map[string]animStat)
	for _, a := range skel.Animations() {
		s := animStat{tracks: a.NodeTrackCount()}
		for _, t := range a.NodeTracks() {
			s.keyframes += t.KeyFrameCount()
		}
		before[a.Name()] = s
	}

	skel.OptimiseAllAnimations(*keepIdentity || cfg.Optimise.KeepIdentityTracks)

	for _, a := range skel.Animations() {
		keyframes := 0
		for _, t := range a.NodeTracks() {
			keyframes += t.KeyFrameCount()
		}
		b := before[a.Name()]
		fmt.Printf("%s: tracks %d -> %d, keyframes %d -> %d\n",
			a.Name(), b.tracks, a.NodeTrackCount(), b.keyframes, keyframes)
	}

	if err := saveSkeleton(skel, *out); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s\n", *out)
}

func cmdRetarget(args []string) {
	fs := flag.NewFlagSet("retarget", flag.ExitOnError)
	out := fs.String("o", "", "Output file")
	anims := fs.String("anims", "", "Comma-separated animation names (default: all)")
	fs.Parse(args)

	if fs.NArg() < 2 || *out == "" {
		fmt.Fprintln(os.Stderr, "Usage: animtool retarget <src> <dst> -o <out> [-anims a,b]")
		os.Exit(1)
	}

	src, err := loadSkeleton(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading source: %v\n", err)
		os.Exit(1)
	}
	dst, err := loadSkeleton(fs.Arg(1))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading destination: %v\n", err)
		os.Exit(1)
	}

	var names []string
	if *anims != "" {
		for _, n := range strings.Split(*anims, ",") {
			if n = strings.TrimSpace(n); n != "" {
				names = append(names, n)
			}
		}
	}

	handleMap := dst.BuildBoneHandleMapByName(src)
	if err := dst.MergeSkeletonAnimations(src, handleMap, names); err != nil {
		fmt.Fprintf(os.Stderr, "Retarget failed: %v\n", err)
		os.Exit(1)
	}

	if err := saveSkeleton(dst, *out); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	merged := len(names)
	if merged == 0 {
		merged = src.AnimationCount()
	}
	fmt.Printf("Merged %d animation(s) onto %s, wrote %s\n", merged, dst.Name(), *out)
}

func cmdBench(args []string) {
	fs := flag.NewFlagSet("bench", flag.ExitOnError)
	actors := fs.Int("actors", 100, "Number of skeleton instances")
	frames := fs.Int("frames", 600, "Number of frames to evaluate")
	dt := fs.Float64("dt", 1.0/60, "Frame step in seconds")
	fs.Parse(args)

	if fs.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "Usage: animtool bench <file> <animation> [-actors n] [-frames n] [-dt s]")
		os.Exit(1)
	}

	proto, err := loadSkeleton(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if !proto.HasAnimation(fs.Arg(1)) {
		fmt.Fprintf(os.Stderr, "Animation not found: %s\n", fs.Arg(1))
		os.Exit(1)
	}

	c := crowd.New(crowd.Config{
		Workers:     cfg.Eval.Workers,
		QueueSize:   cfg.Eval.QueueSize,
		IdleTimeout: cfg.Eval.IdleTimeout,
	}, logger.Named("crowd"))

	for i := 0; i < *actors; i++ {
		actor := c.Spawn(proto)
		st, err := actor.States().AnimationState(fs.Arg(1))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		st.SetEnabled(true)
		st.SetLoop(true)
		// Stagger the phases so actors hit different keyframe brackets.
		st.SetTimePosition(st.Length() * float32(i) / float32(*actors))
	}

	start := time.Now()
	for f := 0; f < *frames; f++ {
		if err := c.Advance(float32(*dt)); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
	elapsed := time.Since(start)

	evals := *actors * *frames
	fmt.Printf("%d actors x %d frames: %v (%.0f poses/s, %.3f ms/frame)\n",
		*actors, *frames, elapsed.Round(time.Microsecond),
		float64(evals)/elapsed.Seconds(),
		float64(elapsed.Milliseconds())/float64(*frames))
}

func cmdConvert(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: animtool convert <in> <out>")
		os.Exit(1)
	}

	skel, err := loadSkeleton(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := saveSkeleton(skel, args[1]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Converted %s -> %s (%d bones, %d animations)\n",
		args[0], args[1], skel.BoneCount(), skel.AnimationCount())
}
