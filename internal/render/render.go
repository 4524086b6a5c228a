// Package render draws pipeline snapshots on a terminal.
package render

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/samcharles93/explora/internal/inference"
	"github.com/samcharles93/explora/internal/model"
)

const (
	defaultWidth   = 80
	defaultMaxDims = 8
	labelWidth     = 12
	maxBarWidth    = 40
)

// Options configures a Renderer. Zero values are detected from the writer.
type Options struct {
	Width int
	// Color forces colour on or off. Nil enables colour on terminals.
	Color *bool
	// MaxDims limits how many embedding dimensions are printed.
	MaxDims int
}

// Renderer writes human-readable views of snapshots.
type Renderer struct {
	w       io.Writer
	width   int
	maxDims int

	heading  *color.Color
	muted    *color.Color
	token    *color.Color
	positive *color.Color
	negative *color.Color
	strong   *color.Color
	weak     *color.Color
	bar      *color.Color
	accent   *color.Color
}

// New returns a Renderer writing to w.
func New(w io.Writer, opts Options) *Renderer {
	tty, width := terminalInfo(w)
	if opts.Width <= 0 {
		opts.Width = width
	}
	colored := tty && !color.NoColor
	if opts.Color != nil {
		colored = *opts.Color
	}
	if opts.MaxDims <= 0 {
		opts.MaxDims = defaultMaxDims
	}

	r := &Renderer{
		w:        w,
		width:    opts.Width,
		maxDims:  opts.MaxDims,
		heading:  color.New(color.FgHiWhite, color.Bold, color.Underline),
		muted:    color.New(color.FgHiBlack),
		token:    color.New(color.FgCyan, color.Bold),
		positive: color.New(color.FgGreen),
		negative: color.New(color.FgRed),
		strong:   color.New(color.FgHiYellow, color.Bold),
		weak:     color.New(color.FgYellow),
		bar:      color.New(color.FgBlue),
		accent:   color.New(color.FgMagenta, color.Bold),
	}
	for _, c := range []*color.Color{r.heading, r.muted, r.token, r.positive, r.negative, r.strong, r.weak, r.bar, r.accent} {
		if colored {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return r
}

func terminalInfo(w io.Writer) (bool, int) {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return false, defaultWidth
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return true, defaultWidth
	}
	return true, width
}

// Snapshot renders every section the snapshot has data for.
func (r *Renderer) Snapshot(s *inference.Snapshot) error {
	sections := []func(*inference.Snapshot) error{r.Tokens}
	if s.Stage >= inference.StageEmbeddings {
		sections = append(sections, r.Embeddings)
	}
	if len(s.Heads) > 0 {
		sections = append(sections, r.Attention)
	}
	if len(s.Probabilities) > 0 {
		sections = append(sections, r.Probabilities)
	}
	if len(s.GeneratedTokens) > 0 {
		sections = append(sections, r.Generated)
	}
	for _, fn := range sections {
		if err := fn(s); err != nil {
			return err
		}
	}
	return nil
}

// Tokens lists every token with its position and hashed id.
func (r *Renderer) Tokens(s *inference.Snapshot) error {
	p := &printer{w: r.w}
	p.line(r.heading.Sprintf("Tokens (%d)", len(s.Tokens)))
	for i, tok := range s.Tokens {
		id := 0
		if i < len(s.TokenIDs) {
			id = s.TokenIDs[i]
		}
		p.line(fmt.Sprintf("  %s %s %s",
			r.muted.Sprintf("%3d", i),
			r.token.Sprint(pad(tok, labelWidth)),
			r.muted.Sprintf("id %4d", id)))
	}
	p.line("")
	return p.err
}

// Embeddings prints the first dimensions of each combined vector.
func (r *Renderer) Embeddings(s *inference.Snapshot) error {
	p := &printer{w: r.w}
	dims := 0
	if len(s.Combined) > 0 {
		dims = len(s.Combined[0])
	}
	shown := min(dims, r.maxDims)
	p.line(r.heading.Sprintf("Embeddings + position (%d of %d dims)", shown, dims))
	for i, vec := range s.Combined {
		var b strings.Builder
		b.WriteString("  ")
		b.WriteString(r.token.Sprint(pad(tokenAt(s, i), labelWidth)))
		for _, v := range vec[:shown] {
			b.WriteByte(' ')
			c := r.positive
			if v < 0 {
				c = r.negative
			}
			b.WriteString(c.Sprintf("%+.2f", v))
		}
		if shown < len(vec) {
			b.WriteString(r.muted.Sprint(" …"))
		}
		p.line(b.String())
	}
	p.line("")
	return p.err
}

// Attention draws the head-averaged causal weight matrix followed by the
// position each head attends to most from the last token.
func (r *Renderer) Attention(s *inference.Snapshot) error {
	p := &printer{w: r.w}
	n := len(s.AttentionWeights)
	p.line(r.heading.Sprintf("Attention (%d heads, averaged)", len(s.Heads)))

	var header strings.Builder
	header.WriteString("  " + strings.Repeat(" ", labelWidth))
	for j := range n {
		header.WriteString(r.muted.Sprintf(" %5d", j))
	}
	p.line(header.String())

	for i, row := range s.AttentionWeights {
		var b strings.Builder
		b.WriteString("  ")
		b.WriteString(r.token.Sprint(pad(tokenAt(s, i), labelWidth)))
		for j, w := range row {
			b.WriteByte(' ')
			b.WriteString(r.cell(combinedCell(i, j, w), w))
		}
		p.line(b.String())
	}

	if n > 0 {
		last := n - 1
		p.line(r.muted.Sprintf("  focus of %q per head:", tokenAt(s, last)))
		for _, h := range s.Heads {
			best := argmaxRow(h.Weights, last)
			p.line(fmt.Sprintf("    head %d → %s %s",
				h.Index,
				r.token.Sprint(tokenAt(s, best)),
				r.muted.Sprintf("(%.2f)", h.Weights[last][best])))
		}
	}
	p.line("")
	return p.err
}

func (r *Renderer) cell(state model.CellState, w float64) string {
	switch state {
	case model.CellMasked:
		return r.muted.Sprint("    ·")
	case model.CellLow:
		return r.weak.Sprintf("%5.2f", w)
	default:
		return r.strong.Sprintf("%5.2f", w)
	}
}

func combinedCell(i, j int, w float64) model.CellState {
	switch {
	case j > i:
		return model.CellMasked
	case w < model.LowAttention:
		return model.CellLow
	default:
		return model.CellComputed
	}
}

// Probabilities draws a bar per candidate, scaled to the most likely one.
func (r *Renderer) Probabilities(s *inference.Snapshot) error {
	p := &printer{w: r.w}
	p.line(r.heading.Sprintf("Next token (entropy %.3f nats)", s.Entropy))
	if len(s.Probabilities) == 0 {
		p.line("")
		return p.err
	}
	top := s.Probabilities[0].Probability
	barWidth := max(min(r.width-labelWidth-16, maxBarWidth), 8)
	for _, tp := range s.Probabilities {
		n := 0
		if top > 0 {
			n = int(tp.Probability / top * float64(barWidth))
		}
		n = max(n, 1)
		p.line(fmt.Sprintf("  %s %s %s",
			r.token.Sprint(pad(tp.Token, labelWidth)),
			r.muted.Sprintf("%6.2f%%", tp.Probability*100),
			r.bar.Sprint(strings.Repeat("█", n))))
	}
	p.line("")
	return p.err
}

// Generated prints the prompt followed by the generated tokens.
func (r *Renderer) Generated(s *inference.Snapshot) error {
	p := &printer{w: r.w}
	p.line(r.heading.Sprintf("Generated (%d)", len(s.GeneratedTokens)))
	p.line("  " + s.Prompt + " " + r.accent.Sprint(strings.Join(s.GeneratedTokens, " ")))
	p.line("")
	return p.err
}

// Token writes one streamed token without a newline.
func (r *Renderer) Token(tok string) error {
	_, err := io.WriteString(r.w, " "+r.accent.Sprint(tok))
	return err
}

type printer struct {
	w   io.Writer
	err error
}

func (p *printer) line(s string) {
	if p.err != nil {
		return
	}
	_, p.err = io.WriteString(p.w, s+"\n")
}

func tokenAt(s *inference.Snapshot, i int) string {
	if i < 0 || i >= len(s.Tokens) {
		return "?"
	}
	return s.Tokens[i]
}

func argmaxRow(m [][]float64, row int) int {
	best := 0
	for j, v := range m[row] {
		if v > m[row][best] {
			best = j
		}
	}
	return best
}

// pad truncates or right-pads s to width runes.
func pad(s string, width int) string {
	n := utf8.RuneCountInString(s)
	if n > width {
		r := []rune(s)
		return string(r[:width-1]) + "…"
	}
	return s + strings.Repeat(" ", width-n)
}
