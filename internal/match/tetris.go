package match

import (
	"math/rand"
	"strconv"
	"strings"
)

const (
	boardCols = 10
	boardRows = 20
)

// shapes holds the seven tetromino rotations in their spawn orientation,
// each a 4x4 matrix, ported from SHAPE_I..SHAPE_S2 in tetris_game.hpp.
var shapes = [7][4][4]int{
	{{0, 1, 0, 0}, {0, 1, 0, 0}, {0, 1, 0, 0}, {0, 1, 0, 0}}, // I
	{{0, 1, 0, 0}, {1, 1, 1, 0}, {0, 0, 0, 0}, {0, 0, 0, 0}}, // T
	{{0, 1, 0, 0}, {0, 1, 0, 0}, {0, 1, 1, 0}, {0, 0, 0, 0}}, // L
	{{0, 1, 0, 0}, {0, 1, 0, 0}, {1, 1, 0, 0}, {0, 0, 0, 0}}, // L2
	{{1, 1, 0, 0}, {1, 1, 0, 0}, {0, 0, 0, 0}, {0, 0, 0, 0}}, // O
	{{0, 1, 1, 0}, {1, 1, 0, 0}, {0, 0, 0, 0}, {0, 0, 0, 0}}, // S
	{{1, 1, 0, 0}, {0, 1, 1, 0}, {0, 0, 0, 0}, {0, 0, 0, 0}}, // S2
}

// lineClearPoints is indexed by the number of lines cleared in one lock.
var lineClearPoints = [5]int{0, 100, 300, 500, 800}

type piece struct {
	shape   [4][4]int
	x, y    int
	shapeID int
}

// TetrisEngine is a port of TetrisGame (tetris_game.hpp): a 10x20 board,
// 7-bag randomizer, gravity tick, and the LEFT/RIGHT/DOWN/ROTATE/DROP/HOLD
// input set. It implements GameEngine.
type TetrisEngine struct {
	board        [boardRows][boardCols]int
	score        int
	linesCleared int
	gameOver     bool

	current piece

	holdShapeID int
	holdUsed    bool

	rng *rand.Rand
	bag []int
}

// NewTetrisEngine seeds its randomizer exactly as TetrisGame(seed) did,
// then fills the first bag and spawns the first piece.
func NewTetrisEngine(seed int64) *TetrisEngine {
	g := &TetrisEngine{
		rng:         rand.New(rand.NewSource(seed)),
		holdShapeID: -1,
	}
	g.fillBag()
	g.spawnPiece()
	return g
}

func (g *TetrisEngine) fillBag() {
	g.bag = []int{0, 1, 2, 3, 4, 5, 6}
	g.rng.Shuffle(len(g.bag), func(i, j int) {
		g.bag[i], g.bag[j] = g.bag[j], g.bag[i]
	})
}

func (g *TetrisEngine) setActiveShape(shapeID int) {
	g.current.shapeID = shapeID
	g.current.x = boardCols/2 - 2
	g.current.y = 0
	g.current.shape = shapes[shapeID]
	if g.checkCollision(g.current.x, g.current.y) {
		g.gameOver = true
	}
}

func (g *TetrisEngine) spawnPiece() {
	if len(g.bag) == 0 {
		g.fillBag()
	}
	nextID := g.bag[len(g.bag)-1]
	g.bag = g.bag[:len(g.bag)-1]
	g.setActiveShape(nextID)
	g.holdUsed = false
}

func (g *TetrisEngine) checkCollision(px, py int) bool {
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			if g.current.shape[r][c] == 0 {
				continue
			}
			boardR := py + r
			boardC := px + c
			if boardR < 0 || boardR >= boardRows || boardC < 0 || boardC >= boardCols {
				return true
			}
			if g.board[boardR][boardC] != 0 {
				return true
			}
		}
	}
	return false
}

func (g *TetrisEngine) lockPiece() {
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			if g.current.shape[r][c] != 0 {
				g.board[g.current.y+r][g.current.x+c] = g.current.shapeID + 1
			}
		}
	}
	g.clearLines()
	g.spawnPiece()
}

func (g *TetrisEngine) holdPiece() {
	if g.gameOver || g.holdUsed {
		return
	}
	currentID := g.current.shapeID
	if g.holdShapeID == -1 {
		g.holdShapeID = currentID
		g.spawnPiece()
	} else {
		swapID := g.holdShapeID
		g.holdShapeID = currentID
		g.setActiveShape(swapID)
	}
	g.holdUsed = true
}

func (g *TetrisEngine) clearLines() {
	linesToClear := 0
	for r := boardRows - 1; r >= 0; r-- {
		full := true
		for c := 0; c < boardCols; c++ {
			if g.board[r][c] == 0 {
				full = false
				break
			}
		}
		if !full {
			continue
		}
		linesToClear++
		for rAbove := r; rAbove > 0; rAbove-- {
			g.board[rAbove] = g.board[rAbove-1]
		}
		g.board[0] = [boardCols]int{}
		r++
	}
	if linesToClear > 0 {
		g.linesCleared += linesToClear
		g.score += lineClearPoints[linesToClear]
	}
}

// Tick is the server-side gravity step.
func (g *TetrisEngine) Tick() {
	if g.gameOver {
		return
	}
	if !g.checkCollision(g.current.x, g.current.y+1) {
		g.current.y++
	} else {
		g.lockPiece()
	}
}

// HandleInput applies one LEFT/RIGHT/DOWN/ROTATE/DROP/HOLD action.
func (g *TetrisEngine) HandleInput(action string) {
	if g.gameOver {
		return
	}
	switch action {
	case "LEFT":
		if !g.checkCollision(g.current.x-1, g.current.y) {
			g.current.x--
		}
	case "RIGHT":
		if !g.checkCollision(g.current.x+1, g.current.y) {
			g.current.x++
		}
	case "DOWN":
		if !g.checkCollision(g.current.x, g.current.y+1) {
			g.current.y++
			g.score++
		} else {
			g.lockPiece()
		}
	case "ROTATE":
		g.rotatePiece()
	case "DROP":
		dropDist := 0
		for !g.checkCollision(g.current.x, g.current.y+1) {
			g.current.y++
			dropDist++
		}
		g.score += dropDist * 2
		g.lockPiece()
	case "HOLD":
		g.holdPiece()
	}
}

func (g *TetrisEngine) rotatePiece() {
	var rotated [4][4]int
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			rotated[c][3-r] = g.current.shape[r][c]
		}
	}
	old := g.current.shape
	g.current.shape = rotated

	if g.checkCollision(g.current.x, g.current.y) {
		if !g.checkCollision(g.current.x-1, g.current.y) {
			g.current.x--
		} else if !g.checkCollision(g.current.x+1, g.current.y) {
			g.current.x++
		} else {
			g.current.shape = old
		}
	}
}

func (g *TetrisEngine) IsGameOver() bool {
	return g.gameOver
}

func (g *TetrisEngine) Score() int {
	return g.score
}

func (g *TetrisEngine) Extra() string {
	return "lines=" + strconv.Itoa(g.linesCleared)
}

// Board renders the board with the active piece overlaid, as a 200-char
// digit string (20 rows of 10 cells), matching get_board_snapshot.
func (g *TetrisEngine) Board() string {
	temp := g.board
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			if g.current.shape[r][c] == 0 {
				continue
			}
			boardR := g.current.y + r
			boardC := g.current.x + c
			if boardR >= 0 && boardR < boardRows && boardC >= 0 && boardC < boardCols {
				temp[boardR][boardC] = g.current.shapeID + 1
			}
		}
	}

	var sb strings.Builder
	sb.Grow(boardRows * boardCols)
	for r := 0; r < boardRows; r++ {
		for c := 0; c < boardCols; c++ {
			sb.WriteString(strconv.Itoa(temp[r][c]))
		}
	}
	return sb.String()
}
