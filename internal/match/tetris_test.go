package match

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"
)

type TetrisEngineTestSuite struct {
	suite.Suite
}

func TestTetrisEngineTestSuite(t *testing.T) {
	suite.Run(t, new(TetrisEngineTestSuite))
}

func (s *TetrisEngineTestSuite) TestNewEngineSpawnsAPieceAndIsNotOver() {
	g := NewTetrisEngine(1)
	s.False(g.IsGameOver())
	s.Equal(0, g.Score())
	s.Equal("lines=0", g.Extra())
}

func (s *TetrisEngineTestSuite) TestBoardSnapshotIs200Digits() {
	g := NewTetrisEngine(1)
	board := g.Board()
	s.Len(board, boardRows*boardCols)
	for _, ch := range board {
		s.True(ch >= '0' && ch <= '7', "unexpected board digit %q", ch)
	}
}

func (s *TetrisEngineTestSuite) TestTickMovesThePieceDown() {
	g := NewTetrisEngine(42)
	startY := g.current.y
	ticks := 0
	for g.current.y == startY && ticks < boardRows+5 {
		g.Tick()
		ticks++
	}
	s.Greater(g.current.y, startY)
}

func (s *TetrisEngineTestSuite) TestHardDropLocksImmediatelyAndScoresDistance() {
	g := NewTetrisEngine(7)
	before := g.score
	g.HandleInput("DROP")
	s.GreaterOrEqual(g.score, before)
	// a hard drop always locks the piece and spawns (or ends) a new one,
	// so the active piece returns to the top of the board.
	s.Equal(0, g.current.y)
}

func (s *TetrisEngineTestSuite) TestClearingAFullRowScoresAndIncrementsLineCount() {
	g := NewTetrisEngine(3)
	// fill every column of the bottom row except the two the spawn
	// column occupies, then let an O piece (shapeID 4) lock into place
	// directly above to complete it.
	for c := 0; c < boardCols; c++ {
		if c == 4 || c == 5 {
			continue
		}
		g.board[boardRows-1][c] = 1
	}
	g.setActiveShape(4) // O piece, spawns at cols 4-5
	for !g.checkCollision(g.current.x, g.current.y+1) {
		g.current.y++
	}
	g.lockPiece()
	s.Equal(1, g.linesCleared)
	s.Equal(100, g.score)
}

func (s *TetrisEngineTestSuite) TestHoldSwapsActivePieceOnceThenLocksOut() {
	g := NewTetrisEngine(5)
	firstShape := g.current.shapeID
	g.HandleInput("HOLD")
	s.Equal(firstShape, g.holdShapeID)
	s.True(g.holdUsed)

	before := g.current.shapeID
	g.HandleInput("HOLD") // second hold before a lock is a no-op
	s.Equal(before, g.current.shapeID)
}

func (s *TetrisEngineTestSuite) TestRotateAtTheLeftWallChangesShapeWithoutColliding() {
	g := NewTetrisEngine(11)
	g.setActiveShape(1) // T piece
	g.current.x = 0
	original := g.current.shape
	g.rotatePiece()
	if g.checkCollision(g.current.x, g.current.y) {
		s.Fail("rotated piece should never be left in a colliding position")
	}
	s.NotEqual(original, g.current.shape, "a successful rotation changes the shape matrix")
}

func (s *TetrisEngineTestSuite) TestGameOverStopsAcceptingInput() {
	g := NewTetrisEngine(9)
	g.gameOver = true
	scoreBefore := g.score
	g.HandleInput("DROP")
	g.Tick()
	s.Equal(scoreBefore, g.score)
}

func (s *TetrisEngineTestSuite) TestExtraReportsLinesCleared() {
	g := NewTetrisEngine(2)
	g.linesCleared = 4
	s.Equal("lines=4", g.Extra())
	s.True(strings.HasPrefix(g.Extra(), "lines="))
}
