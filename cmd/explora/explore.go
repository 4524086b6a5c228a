package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/explora/internal/logger"
	"github.com/samcharles93/explora/internal/logits"
	"github.com/samcharles93/explora/internal/render"
	"github.com/samcharles93/explora/internal/session"
	"github.com/samcharles93/explora/internal/vocab"
)

const exploreHelp = `Type a text to run the pipeline over it. An empty line generates one token.
Commands:
  :demo [N]        run demo text N (lists them without N)
  :strategy NAME   greedy, random, top-k or temperature
  :k N             candidates for top-k
  :temp T          temperature
  :explain         toggle stage explanations
  :reset           start over
  :help            show this help
  :quit            exit`

func exploreCmd() *cli.Command {
	return &cli.Command{
		Name:  "explore",
		Usage: "Interactively run texts and generate tokens one at a time",
		Flags: append(pipelineFlags(), samplingFlags()...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyPipelineConfig(cmd, fileConfig)
			applySamplingConfig(cmd, fileConfig)

			runner, err := newRunner(ctx)
			if err != nil {
				return err
			}
			scfg, err := samplerConfig()
			if err != nil {
				return err
			}
			ex := &explorer{
				machine: session.NewMachine(runner, logits.NewSampler(scfg)),
				state:   session.Initial(),
				next: session.GenerateNext{
					Strategy:    scfg.Strategy,
					Temperature: scfg.Temperature,
					K:           scfg.TopK,
				},
				out: render.New(os.Stdout, render.Options{}),
				w:   os.Stdout,
				log: logger.FromContext(ctx),
			}
			fmt.Fprintln(os.Stdout, exploreHelp)
			for {
				if err := ctx.Err(); err != nil {
					return err
				}
				line, err := readInteractiveLine("explora> ")
				if errors.Is(err, io.EOF) {
					return nil
				}
				if err != nil {
					return err
				}
				quit, err := ex.handle(strings.TrimSpace(line))
				if err != nil {
					fmt.Fprintf(os.Stdout, "error: %v\n", err)
				}
				if quit {
					return nil
				}
			}
		},
	}
}

// explorer drives a session from interactive input.
type explorer struct {
	machine *session.Machine
	state   session.State
	next    session.GenerateNext
	out     *render.Renderer
	w       io.Writer
	log     logger.Logger
}

// handle processes one input line and reports whether the loop should end.
func (ex *explorer) handle(line string) (bool, error) {
	if strings.HasPrefix(line, ":") {
		return ex.command(line)
	}
	if line == "" {
		return false, ex.generate()
	}
	return false, ex.start(line)
}

func (ex *explorer) command(line string) (bool, error) {
	fields := strings.Fields(line)
	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}
	switch fields[0] {
	case ":quit", ":q", ":exit":
		return true, nil
	case ":help", ":h":
		_, err := fmt.Fprintln(ex.w, exploreHelp)
		return false, err
	case ":demo":
		if arg == "" {
			for i, t := range vocab.DemoTexts {
				fmt.Fprintf(ex.w, "  %2d. %s\n", i+1, t)
			}
			return false, nil
		}
		n, err := strconv.Atoi(arg)
		if err != nil || n < 1 || n > len(vocab.DemoTexts) {
			return false, fmt.Errorf("demo must be 1-%d", len(vocab.DemoTexts))
		}
		return false, ex.start(vocab.DemoTexts[n-1])
	case ":strategy":
		s, err := logits.ParseStrategy(arg)
		if err != nil {
			return false, err
		}
		ex.next.Strategy = s
		_, err = fmt.Fprintf(ex.w, "strategy: %s\n", s)
		return false, err
	case ":k":
		k, err := strconv.Atoi(arg)
		if err != nil || k < 1 {
			return false, fmt.Errorf("k must be a positive integer")
		}
		ex.next.K = k
		return false, nil
	case ":temp":
		t, err := strconv.ParseFloat(arg, 64)
		if err != nil || t <= 0 {
			return false, fmt.Errorf("temperature must be a positive number")
		}
		ex.next.Temperature = t
		return false, nil
	case ":explain":
		return false, ex.apply(session.ToggleExplanation{})
	case ":reset":
		return false, ex.apply(session.Restart{})
	default:
		return false, fmt.Errorf("unknown command %s (try :help)", fields[0])
	}
}

// apply reduces actions in order and commits the result only when every one
// succeeds, so a rejected action leaves the current exploration untouched.
func (ex *explorer) apply(actions ...session.Action) error {
	next := ex.state
	for _, a := range actions {
		var err error
		if next, err = ex.machine.Reduce(next, a); err != nil {
			return err
		}
		ex.log.Debug("session action", "action", a.Name(), "step", next.Step)
	}
	ex.state = next
	return nil
}

// start runs every stage over text, explaining each when explanation mode is
// on.
func (ex *explorer) start(text string) error {
	if err := ex.apply(session.Restart{}, session.Start{Text: text}); err != nil {
		return err
	}
	stages := []struct {
		action  session.Action
		step    int
		explain string
		show    func() error
	}{
		{session.ComputeTokens{}, session.StepTokens,
			"The text is split into words and punctuation; each token gets a numeric id.",
			func() error { return ex.out.Tokens(ex.state.Snapshot) }},
		{session.ComputeEmbeddings{}, session.StepEmbeddings,
			"Each id becomes a vector, and a positional encoding records where the token sits.",
			func() error { return ex.out.Embeddings(ex.state.Snapshot) }},
		{session.ComputeAttention{}, session.StepAttention,
			"Every token looks back at the tokens before it; weights show how much.",
			func() error { return ex.out.Attention(ex.state.Snapshot) }},
		{session.ComputeProbabilities{}, session.StepProbabilities,
			"The last vector is scored against the vocabulary to rank possible next tokens.",
			func() error { return ex.out.Probabilities(ex.state.Snapshot) }},
	}
	for _, st := range stages {
		if err := ex.apply(st.action, session.SetStep{Step: st.step}); err != nil {
			return err
		}
		if ex.state.ExplanationMode {
			fmt.Fprintln(ex.w, st.explain)
		}
		if err := st.show(); err != nil {
			return err
		}
	}
	return nil
}

func (ex *explorer) generate() error {
	if ex.state.Snapshot == nil {
		return fmt.Errorf("type a text first")
	}
	if err := ex.apply(ex.next); err != nil {
		return err
	}
	if ex.state.ExplanationMode {
		fmt.Fprintf(ex.w, "Sampled with %s and appended; the whole pipeline ran again over the longer text.\n", ex.next.Strategy)
	}
	if err := ex.out.Generated(ex.state.Snapshot); err != nil {
		return err
	}
	return ex.out.Probabilities(ex.state.Snapshot)
}
