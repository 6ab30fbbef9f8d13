// skininspect loads an avatar without a window and reports on its rig,
// skin binding and a short headless animation run.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/skinrig/internal/asset/gltfasset"
	"github.com/Faultbox/skinrig/internal/avatar"
	"github.com/Faultbox/skinrig/internal/config"
	"github.com/Faultbox/skinrig/internal/logger"
	"github.com/Faultbox/skinrig/internal/pose"
	"github.com/Faultbox/skinrig/internal/skinning"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "info":
		err = cmdInfo(args)
	case "tree":
		err = cmdTree(args)
	case "run":
		err = cmdRun(args)
	case "export":
		err = cmdExport(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
	logger.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`skininspect - headless avatar rig inspector

Usage:
  skininspect <command> [options] [model.glb]

Without a model file the built-in synthetic humanoid is used.

Commands:
  info [model]                   Show bones, joints, meshes and binding report
  tree [model]                   Print the bone hierarchy
  run [options] [model]          Animate on the CPU path and print the status
  export [options] <out.glb> [model]
                                 Animate, then write the deformed meshes

Run/export options:
  -ticks N        Ticks to run at 30 Hz (default 90)
  -state NAME     idle, scanning, alert or reminder
  -look X,Y       Normalized look target (default 0.5,0.5)
  -restrict BONE  Re-skin only vertices under BONE
  -transient      Drop exploded vertices per tick instead of freezing the mesh
  -debug          Log to stderr at debug level

Examples:
  skininspect info avatar.glb
  skininspect run -state scanning -ticks 300
  skininspect export -state alert pose.glb avatar.vrm.glb`)
}

func cmdInfo(args []string) error {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	fs.Parse(args)

	m, err := avatar.Load(fs.Arg(0), config.Default().Skinning.MaxJoints)
	if err != nil {
		return err
	}

	vertices := 0
	for _, mesh := range m.Meshes {
		vertices += mesh.VertexCount()
	}
	fmt.Printf("Model:    %s\n", m.Name)
	fmt.Printf("Bones:    %d\n", m.Hierarchy.Len())
	fmt.Printf("Joints:   %d (source %d)\n", m.Binding.JointCount(), m.Report.SourceJoints)
	fmt.Printf("Meshes:   %d\n", len(m.Meshes))
	fmt.Printf("Vertices: %d\n", vertices)
	fmt.Println()

	fmt.Println("Meshes:")
	for _, mesh := range m.Meshes {
		kind := "rigid"
		if mesh.HasSkin() {
			kind = "skinned"
		}
		fmt.Printf("  %-24s %6d verts %6d tris  %-7s", mesh.Name, mesh.VertexCount(), len(mesh.Indices)/3, kind)
		if len(mesh.Morphs) > 0 {
			names := make([]string, len(mesh.Morphs))
			for i, t := range mesh.Morphs {
				names[i] = t.Name
			}
			fmt.Printf("  morphs: %s", strings.Join(names, ", "))
		}
		fmt.Println()
	}
	fmt.Println()

	if err := m.Report.Err(); err != nil {
		fmt.Println("Binding: degraded")
		for _, line := range strings.Split(err.Error(), "\n") {
			fmt.Printf("  %s\n", line)
		}
	} else {
		fmt.Println("Binding: ok")
	}
	return nil
}

func cmdTree(args []string) error {
	fs := flag.NewFlagSet("tree", flag.ExitOnError)
	fs.Parse(args)

	m, err := avatar.Load(fs.Arg(0), config.Default().Skinning.MaxJoints)
	if err != nil {
		return err
	}

	h := m.Hierarchy
	depth := make([]int, h.Len())
	for _, i := range h.Order() {
		b := h.Bone(i)
		if b.Parent >= 0 {
			depth[i] = depth[b.Parent] + 1
		}
		t := b.Translation
		fmt.Printf("%s%s  (%.3f, %.3f, %.3f)\n", strings.Repeat("  ", depth[i]), b.Name, t.X(), t.Y(), t.Z())
	}
	return nil
}

type runOptions struct {
	ticks     int
	state     pose.CompanionState
	look      [2]float32
	restrict  string
	transient bool
}

func runFlags(name string, args []string) (*flag.FlagSet, *runOptions, error) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	ticks := fs.Int("ticks", 90, "ticks to run")
	state := fs.String("state", "idle", "companion state")
	look := fs.String("look", "0.5,0.5", "normalized look target")
	restrict := fs.String("restrict", "", "restricted update root bone")
	transient := fs.Bool("transient", false, "transient explosion fallback")
	debug := fs.Bool("debug", false, "debug logging")
	fs.Parse(args)

	level := "warn"
	if *debug {
		level = "debug"
	}
	if err := logger.Init(level, ""); err != nil {
		return nil, nil, err
	}

	opts := &runOptions{ticks: *ticks, restrict: *restrict, transient: *transient}
	var err error
	if opts.state, err = pose.ParseCompanionState(*state); err != nil {
		return nil, nil, err
	}
	x, y, ok := strings.Cut(*look, ",")
	if !ok {
		return nil, nil, fmt.Errorf("look target %q: want X,Y", *look)
	}
	for i, s := range []string{x, y} {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 32)
		if err != nil {
			return nil, nil, fmt.Errorf("look target %q: %w", *look, err)
		}
		opts.look[i] = float32(v)
	}
	return fs, opts, nil
}

// animate builds a headless CPU engine for path and runs it.
func animate(path string, ro *runOptions) (*avatar.Engine, error) {
	cfg := config.Default()
	cfg.Skinning.CPUEnabled = true
	cfg.Skinning.RestrictedRoot = ro.restrict
	if ro.transient {
		cfg.Skinning.Fallback = skinning.FallbackTransient
	}

	m, err := avatar.Load(path, cfg.Skinning.MaxJoints)
	if err != nil {
		return nil, err
	}
	e, err := avatar.NewEngine(m, nil, avatar.OptionsFromConfig(cfg))
	if err != nil {
		return nil, err
	}
	if ro.restrict != "" && e.Status().Restricted == "" {
		return nil, fmt.Errorf("restricted root %q: no such bone", ro.restrict)
	}

	clock := avatar.NewClock(cfg.Animation.TickHz, 1)
	in := pose.Input{Dt: clock.Step(), State: ro.state}
	in.LookTarget[0], in.LookTarget[1] = ro.look[0], ro.look[1]
	for range ro.ticks {
		e.Tick(in)
	}
	logger.Debug("run finished", zap.Int("ticks", ro.ticks), zap.Stringer("state", ro.state))
	return e, nil
}

func cmdRun(args []string) error {
	fs, ro, err := runFlags("run", args)
	if err != nil {
		return err
	}
	e, err := animate(fs.Arg(0), ro)
	if err != nil {
		return err
	}
	defer e.Close()

	st := e.Status()
	fmt.Printf("Model:     %s\n", e.Model().Name)
	fmt.Printf("Mode:      %s\n", st.Mode)
	fmt.Printf("Ticks:     %d\n", st.Ticks)
	fmt.Printf("State:     %s\n", e.Layer().State())
	if st.Restricted != "" {
		fmt.Printf("Restrict:  %s\n", st.Restricted)
	}
	if hs, ok := e.Layer().HeadState(); ok {
		fmt.Printf("Head:      yaw %.2f pitch %.2f\n", hs.CurrentYaw, hs.CurrentPitch)
	}
	fmt.Printf("Exploded:  %d vertices\n", st.Exploded)
	if len(st.DisabledMeshes) > 0 {
		fmt.Printf("Disabled:  %s\n", strings.Join(st.DisabledMeshes, ", "))
	}
	fmt.Printf("Degraded:  %v\n", st.Degraded())

	shapes := e.Layer().BlendShapes()
	if len(shapes) > 0 {
		fmt.Println("Blend shapes:")
		for _, k := range sortedKeys(shapes) {
			fmt.Printf("  %-16s %.3f\n", k, shapes[k])
		}
	}
	return nil
}

func cmdExport(args []string) error {
	fs, ro, err := runFlags("export", args)
	if err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: skininspect export [options] <out.glb> [model]")
	}
	out := fs.Arg(0)

	e, err := animate(fs.Arg(1), ro)
	if err != nil {
		return err
	}
	defer e.Close()

	m := e.Model()
	meshes := make([]gltfasset.PosedMesh, len(m.Meshes))
	for i, mesh := range m.Meshes {
		meshes[i] = gltfasset.PosedMesh{
			Name:      mesh.Name,
			Positions: e.Positions(i),
			Normals:   e.Normals(i),
			Indices:   mesh.Indices,
		}
	}
	if err := gltfasset.SavePose(out, m.Name+"-"+ro.state.String(), meshes); err != nil {
		return err
	}
	fmt.Printf("Wrote %s (%d meshes after %d ticks)\n", out, len(meshes), ro.ticks)
	return nil
}
