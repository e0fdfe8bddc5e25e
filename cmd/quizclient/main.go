package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gokatarajesh/livequiz/internal/client"
	ws "github.com/gokatarajesh/livequiz/pkg/http/ws"
)

func main() {
	var (
		server   = flag.String("server", "ws://localhost:8080", "API base URL (ws:// or wss://)")
		pin      = flag.String("pin", "", "Game pin")
		role     = flag.String("role", ws.RolePlayer, "Join as host or player")
		nickname = flag.String("nickname", "", "Player nickname")
		token    = flag.String("token", os.Getenv("LIVEQUIZ_HOST_TOKEN"), "Host bearer token")
		tokenDir = flag.String("token-dir", defaultTokenDir(), "Directory where player tokens are kept for reconnects")
	)
	flag.Parse()

	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	if *pin == "" {
		log.Fatal().Msg("-pin is required")
	}
	if *role == ws.RolePlayer && strings.TrimSpace(*nickname) == "" {
		log.Fatal().Msg("-nickname is required for players")
	}

	endpoint, err := url.JoinPath(*server, "ws", "games", *pin)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid server URL")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine := client.New(client.Config{
		URL:       endpoint,
		Pin:       *pin,
		Role:      *role,
		HostToken: *token,
		Nickname:  *nickname,
		Tokens:    client.FileTokenStore{Dir: *tokenDir},
	}, log.Logger)

	go render(ctx, engine)
	go readCommands(ctx, engine)

	if err := engine.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("game connection ended")
	}
	_ = engine.Close()
}

func defaultTokenDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".livequiz"
	}
	return filepath.Join(dir, "livequiz")
}

func render(ctx context.Context, engine *client.Engine) {
	var last client.State
	for {
		select {
		case <-ctx.Done():
			return
		case st := <-engine.Updates():
			if st.Disconnected && !last.Disconnected {
				log.Warn().Msg("disconnected, reconnecting")
			}
			if st.LastError != nil && st.LastError != last.LastError {
				log.Warn().Str("code", st.LastError.Code).Msg(st.LastError.Reason)
			}
			if st.Roster.Len() != last.Roster.Len() {
				log.Info().Int("players", st.Roster.Len()).Msg("roster changed")
			}
			if st.Phase != last.Phase || st.QuestionIndex != last.QuestionIndex {
				renderPhase(st)
			}
			last = st
		}
	}
}

func renderPhase(st client.State) {
	switch st.Phase {
	case client.PhaseLobby:
		log.Info().Int("players", st.Roster.Len()).Msg("waiting in lobby")
	case client.PhaseQuestion:
		q := st.Question
		ev := log.Info().Int("question", q.QuestionIndex).Int("of", q.TotalQuestions).Int64("question_id", q.QuestionID)
		ev.Msg(q.Prompt)
		for _, c := range q.Choices {
			fmt.Printf("  [%d] %s\n", c.ID, c.Text)
		}
	case client.PhaseReveal, client.PhaseLeaderboard, client.PhaseFinished:
		if st.Reveal != nil && st.Phase == client.PhaseReveal {
			log.Info().Ints64("correct", st.Reveal.CorrectChoiceIDs).Msg("answer revealed")
		}
		if st.Phase == client.PhaseFinished {
			log.Info().Msg("game finished")
		}
		for _, e := range st.Leaderboard {
			fmt.Printf("  %2d. %-20s %6d\n", e.Rank, e.Nickname, e.Score)
		}
	}
}

// readCommands accepts: start | next | answer <choice_id> | order <id,id,...> | text <answer>.
func readCommands(ctx context.Context, engine *client.Engine) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		verb, arg, _ := strings.Cut(line, " ")

		var err error
		switch verb {
		case "start":
			err = engine.Start(ctx)
		case "next", "advance":
			err = engine.Advance(ctx)
		case "answer", "order", "text":
			err = submit(ctx, engine, verb, strings.TrimSpace(arg))
		default:
			log.Warn().Str("input", line).Msg("commands: start, next, answer <id>, order <id,id>, text <answer>")
			continue
		}
		if err != nil {
			log.Warn().Err(err).Str("command", verb).Msg("command rejected")
		}
	}
}

func submit(ctx context.Context, engine *client.Engine, verb, arg string) error {
	st := engine.State()
	if st.Question == nil {
		return fmt.Errorf("no question running")
	}

	var answer ws.AnswerValue
	switch verb {
	case "answer":
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return fmt.Errorf("choice id: %w", err)
		}
		answer.ChoiceID = &id
	case "order":
		for _, part := range strings.Split(arg, ",") {
			id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
			if err != nil {
				return fmt.Errorf("ordering: %w", err)
			}
			answer.Ordering = append(answer.Ordering, id)
		}
	case "text":
		answer.Text = &arg
	}
	return engine.SubmitAnswer(ctx, st.Question.QuestionID, answer)
}
