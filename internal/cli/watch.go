package cli

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"live-quiz-service/internal/app"
	"live-quiz-service/internal/clientsync"
	"live-quiz-service/internal/logging"
)

// NewWatchCmd follows a room from the outside, the way a player's screen does.
func NewWatchCmd() *cobra.Command {
	var server, code string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow a room's live scoreboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logging.New("info", "console")
			if err != nil {
				return err
			}
			defer logger.Sync()
			return runWatch(cmd.Context(), server, code, logger)
		},
	}
	cmd.Flags().StringVar(&server, "server", "http://localhost:8080", "base URL of the quiz service")
	cmd.Flags().StringVar(&code, "code", "", "room code to follow")
	_ = cmd.MarkFlagRequired("code")
	return cmd
}

func runWatch(ctx context.Context, server, code string, logger *zap.SugaredLogger) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := clientsync.NewClient(server, nil)
	room, players, err := client.Room(ctx, app.NormalizeCode(code))
	if err != nil {
		return err
	}

	view := clientsync.NewView()
	view.Seed(room, players)
	logScoreboard(logger, view)

	wsURL, err := client.EventsURL(room.ID)
	if err != nil {
		return err
	}
	logger.Infow("following room", "code", room.Code, "stream", wsURL)
	return clientsync.Follow(ctx, wsURL, view, func() { logScoreboard(logger, view) })
}

func logScoreboard(logger *zap.SugaredLogger, view *clientsync.View) {
	rows := make([]string, 0)
	for _, p := range view.Players() {
		row := fmt.Sprintf("%s=%d", p.Name, p.Score)
		if p.Correct != nil {
			if *p.Correct {
				row += " (correct)"
			} else {
				row += " (wrong)"
			}
		} else if p.Answer != nil {
			row += " (answered)"
		}
		rows = append(rows, row)
	}

	question := "none"
	if q := view.Question(); q != nil {
		question = string(q.Type)
	}
	logger.Infow("scoreboard",
		"code", view.Code(),
		"status", view.Status(),
		"question", question,
		"answering", view.Answering(),
		"players", strings.Join(rows, ", "),
	)
}
