package flappy_world

import (
	"fmt"
	"strings"
)

// Console resolution: one character covers CELL_W x CELL_H pixels.
const (
	CELL_W = 8
	CELL_H = 16
)

// Frame cell types
const (
	SKY  = ' '
	PIPE = '|'
	BIRD = '@'
	BASE = '='
)

// RenderFrame projects the current frame down to console resolution, top row first.
func RenderFrame(g *Game) (rows []string) {
	cols := SCREEN_WIDTH / CELL_W
	for y := 0; y < SCREEN_HEIGHT; y += CELL_H {
		var sb strings.Builder
		for x := 0; x < cols*CELL_W; x += CELL_W {
			sb.WriteRune(g.cellAt(x, y))
		}
		rows = append(rows, sb.String())
	}
	return
}

func (g *Game) cellAt(x, y int) rune {
	if y >= BASE_Y {
		return BASE
	}
	if x+CELL_W > BIRD_X && x < BIRD_X+BIRD_WIDTH && y+CELL_H > g.birdY && y < g.birdY+BIRD_HEIGHT {
		return BIRD
	}
	for _, p := range g.pipes {
		if x+CELL_W > p.x && x < p.x+PIPE_WIDTH && (y < p.gapY || y+CELL_H > p.gapY+PIPE_GAP) {
			return PIPE
		}
	}
	return SKY
}

// ShowFrame prints the frame, for visual reference.
func ShowFrame(g *Game) {
	for _, row := range RenderFrame(g) {
		fmt.Println(row)
	}
	fmt.Printf("score: %d\n", g.score)
}
