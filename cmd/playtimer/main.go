package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"moriportal/internal/client"
	"moriportal/internal/models"
	"moriportal/internal/quota"
	"moriportal/internal/settingsync"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cast"
)

func main() {
	apiURL := flag.String("api", "http://localhost:8080/make-server-92f3175c", "engagement API base URL")
	anonKey := flag.String("anon", "", "public anon key")
	statePath := flag.String("state", defaultStatePath(), "local quota state file")
	rest := flag.Int("rest", models.DefaultRestReminderMinutes, "rest reminder interval in minutes, 0 disables")
	tz := flag.String("tz", "", "time zone for the daily reset, default local")
	debug := flag.Bool("d", false, "debug logging")
	flag.Parse()

	level := zerolog.InfoLevel
	if *debug {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).With().Timestamp().Logger()

	loc := time.Local
	if *tz != "" {
		l, err := time.LoadLocation(*tz)
		if err != nil {
			log.Fatal().Err(err).Str("tz", *tz).Msg("unknown time zone")
		}
		loc = l
	}

	if err := os.MkdirAll(filepath.Dir(*statePath), 0o755); err != nil {
		log.Fatal().Err(err).Str("path", *statePath).Msg("create state directory")
	}
	store, err := quota.NewFileStore(*statePath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *statePath).Msg("open quota state")
	}

	engine := quota.NewEngine(quota.Options{
		Store:               store,
		Location:            loc,
		Logger:              log.With().Str("component", "quota").Logger(),
		RestReminderMinutes: *rest,
	})
	defer engine.Close()

	api := client.New(client.Config{BaseURL: *apiURL, AnonKey: *anonKey}, log.With().Str("component", "client").Logger())
	sync := settingsync.New(api, engine, log.With().Str("component", "sync").Logger())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	authEvents := make(chan settingsync.AuthEvent, 4)
	go sync.Run(ctx, authEvents)
	go printEvents(engine.Subscribe(16))
	go printNotices(ctx, sync.Notices())

	printStatus(engine)
	commands := make(chan string)
	go readCommands(commands)

	// A new minute may cross midnight while idle.
	evaluate := time.NewTicker(time.Minute)
	defer evaluate.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-evaluate.C:
			engine.Evaluate()
		case line, ok := <-commands:
			if !ok {
				return
			}
			if !handle(ctx, line, engine, sync, authEvents) {
				return
			}
		}
	}
}

func defaultStatePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "playtimer.json"
	}
	return filepath.Join(dir, "moriportal", "playtimer.json")
}

func readCommands(out chan<- string) {
	defer close(out)
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		out <- strings.TrimSpace(sc.Text())
	}
}

func handle(ctx context.Context, line string, engine *quota.Engine, sync *settingsync.Sync, auth chan<- settingsync.AuthEvent) bool {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "":
	case "start", "play":
		game := arg
		if game == "" {
			game = "game"
		}
		if !engine.Start(game) {
			fmt.Println("Play time is used up for today.")
		}
	case "stop":
		engine.Stop()
	case "status":
		printStatus(engine)
	case "limit":
		minutes, err := cast.ToIntE(arg)
		if err != nil {
			fmt.Println("usage: limit <minutes>")
			return true
		}
		if err := sync.SaveLimit(ctx, minutes); err != nil && !errors.Is(err, models.ErrNetwork) {
			fmt.Println(err)
		}
		printStatus(engine)
	case "login":
		if arg == "" {
			fmt.Println("usage: login <access token>")
			return true
		}
		auth <- settingsync.AuthEvent{Type: settingsync.SignedIn, Token: arg}
	case "logout":
		auth <- settingsync.AuthEvent{Type: settingsync.SignedOut}
	case "history":
		for _, s := range engine.Sessions() {
			fmt.Printf("%s  %-16s %s\n", s.StartedAt.Format(time.DateTime), s.Game, time.Duration(s.Seconds)*time.Second)
		}
	case "quit", "exit":
		return false
	default:
		fmt.Println("commands: start [game], stop, status, limit <minutes>, login <token>, logout, history, quit")
	}
	return true
}

func printStatus(engine *quota.Engine) {
	st := engine.State()
	used := time.Duration(st.TimeUsedSeconds) * time.Second
	limit := time.Duration(st.EffectiveLimitMinutes) * time.Minute
	source := "device"
	if st.ServerOverride {
		source = "account"
	}

	state := "idle"
	switch {
	case st.IsLocked:
		state = "locked"
	case st.IsPlaying:
		state = "playing"
	}
	fmt.Printf("%s  used %s of %s (%s limit)  %s\n", st.TrackingDate, used, limit, source, state)
}

func printEvents(events <-chan quota.Event) {
	for ev := range events {
		switch ev.Type {
		case quota.EventLocked:
			fmt.Println("Time is up for today. Come back tomorrow!")
		case quota.EventUnlocked:
			fmt.Println("Play time available again.")
		case quota.EventRestReminder:
			fmt.Println("Time for a short break: rest your eyes and stretch.")
		case quota.EventReset:
			fmt.Println("A new day: play time has been reset.")
		}
	}
}

func printNotices(ctx context.Context, notices <-chan settingsync.Notice) {
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-notices:
			if n.Level == settingsync.NoticeWarning {
				fmt.Println("warning:", n.Message)
				continue
			}
			fmt.Println(n.Message)
		}
	}
}
