// cmd/matchrunner runs a single Match Runtime directly, with no Lobby
// orchestrating it, the analogue of tetris_server.cpp's standalone mode:
// two fixed player names and a fixed token, useful for exercising a
// Match Runtime in isolation.
package main

import (
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/twoseat/arcade/internal/config"
	"github.com/twoseat/arcade/internal/logging"
	"github.com/twoseat/arcade/internal/match"
	"github.com/twoseat/arcade/internal/netutil"
)

func main() {
	logger := logging.Setup("matchrunner")

	cfg, err := config.LoadMatchRunner(os.Args[1:])
	if err != nil {
		logger.WithError(err).Fatal("failed to load configuration")
	}

	ln, err := netutil.Listen(cfg.BindIP, cfg.Port)
	if err != nil {
		logger.WithError(err).Fatal("failed to bind listener")
	}
	logger.WithField("addr", ln.Addr().String()).Info("listening for standalone match")

	admission := match.Admission{RoomID: 0, P1: "p1", P2: "p2", Token: "demo"}
	onFinish := func(result match.Result) {
		logging.Checkpoint(logger, "MATCH_FINISHED", log.Fields{
			"user1": result.User1, "score1": result.Score1,
			"user2": result.User2, "score2": result.Score2,
		})
	}

	runtime := match.NewRuntime(admission, onFinish, logger)
	runtime.Run(ln)
}
