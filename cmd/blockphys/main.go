package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"blockphys/internal/game"
	"blockphys/internal/physics"
	"blockphys/internal/tuning"

	"github.com/go-gl/mathgl/mgl64"
)

func main() {
	if execPath, err := os.Executable(); err == nil {
		if dir, ok := workDir(execPath); ok {
			if err := os.Chdir(dir); err != nil {
				log.Printf("Game: failed to change to %s, relative paths resolve from %s: %v", dir, cwd(), err)
			}
		}
	}

	configPath := flag.String("config", "configs/physics.yaml", "physics tuning file")
	accel := flag.String("accel", "", "override acceleration (auto, cpu, gpu)")
	players := flag.Int("players", 2, "players to join")
	sneaks := flag.Int("sneaks", 5, "blocks each player spawns")
	duration := flag.Duration("duration", 10*time.Second, "run time, 0 runs until interrupted")
	showHitbox := flag.Bool("hitbox", false, "outline the first block with markers")
	flag.Parse()

	t, err := tuning.Load(*configPath)
	if errors.Is(err, os.ErrNotExist) {
		log.Printf("Game: %s not found, using defaults", *configPath)
		t = tuning.Default()
	} else if err != nil {
		log.Fatalf("Game: %v", err)
	}
	if *accel != "" {
		t.Acceleration = *accel
	}

	env, err := physics.Init(t.EnvConfig())
	if err != nil {
		log.Fatalf("Game: failed to init physics: %v", err)
	}
	defer env.Close()

	spawns := make([]mgl64.Vec3, *players)
	for i := range spawns {
		spawns[i] = mgl64.Vec3{float64(i) * 8, 5, 0}
	}
	s, err := game.New(env, t, spawns)
	if err != nil {
		log.Fatalf("Game: %v", err)
	}
	defer s.End()

	for i := range *players {
		p := s.Join(fmt.Sprintf("player%d", i+1))
		for j := range *sneaks {
			p.Position = p.Position.Add(mgl64.Vec3{0, 1, 0})
			b, err := s.Sneak(p)
			if err != nil {
				log.Printf("Game: sneak failed: %v", err)
				continue
			}
			if *showHitbox && i == 0 && j == 0 {
				log.Printf("Game: hitbox for %s has %d markers", b, s.ShowHitbox(b))
			}
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	go report(ctx, s)
	if err := s.Run(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		log.Printf("Game: %v", err)
	}
	st := s.Stats()
	log.Printf("Game: done, %d ticks, %d objects, %d contacts", st.Ticks, st.Objects, st.Contacts)
}

// workDir is the directory to run from: the executable's own, so deployed
// builds find configs/. "go run" puts the binary in a temp directory, which
// is skipped.
func workDir(execPath string) (string, bool) {
	dir := filepath.Dir(execPath)
	if strings.Contains(dir, "go-build") {
		return "", false
	}
	return dir, true
}

func cwd() string {
	dir, err := os.Getwd()
	if err != nil {
		return "?"
	}
	return dir
}

func report(ctx context.Context, s *game.Session) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := s.Stats()
			log.Printf("Game: tick %d, %d objects, %d entities, step %.2fms", st.Ticks, st.Objects, st.Entities, st.StepMs)
		}
	}
}
