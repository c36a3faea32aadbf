package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/AaronLay10/ChallengeWizard/internal/steps"
	"github.com/AaronLay10/ChallengeWizard/internal/transcript"
	"github.com/AaronLay10/ChallengeWizard/internal/wizard"
)

var errQuit = errors.New("quit")

// console serialises writes from the shell and from notifications raised
// on background goroutines.
type console struct {
	mu  sync.Mutex
	out io.Writer
}

func newConsole(out io.Writer) *console {
	return &console{out: out}
}

func (c *console) Printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

// Notify implements wizard.Notifier.
func (c *console) Notify(level, title, detail string) {
	if detail == "" {
		c.Printf("[%s] %s\n", level, title)
		return
	}
	c.Printf("[%s] %s: %s\n", level, title, detail)
}

type command struct {
	usage string
	help  string
	run   func(ctx context.Context, args []string) error
}

type shell struct {
	w        *wizard.Wizard
	con      *console
	commands map[string]command
	poll     time.Duration

	seen int
}

func newShell(w *wizard.Wizard, con *console) *shell {
	s := &shell{w: w, con: con, poll: 250 * time.Millisecond}
	s.commands = map[string]command{
		"say":      {"say <text>", "send a message to the scoping conversation", s.say},
		"continue": {"continue", "accept the extracted scope and move on", s.cont},
		"adjust":   {"adjust", "ask the AI to revise the extracted scope", s.adjust},
		"next":     {"next", "go to the next step", s.next},
		"back":     {"back", "go to the previous step, discarding later data", s.back},
		"goto":     {"goto <n|step-id>", "jump to a step", s.gotoStep},
		"show":     {"show", "print the current step's data and suggestion", s.show},
		"edit":     {"edit <verb> [args...]", "change the current step's data", s.edit},
		"accept":   {"accept", "apply the current AI suggestion", s.accept},
		"refresh":  {"refresh", "request a new AI suggestion", s.refresh},
		"feedback": {"feedback <text>", "report a problem with the current suggestion", s.feedback},
		"impact":   {"impact <type>", "preview a challenge type's impact", s.impact},
		"status":   {"status", "list steps and progress", s.status},
		"review":   {"review", "print the review summary", s.review},
		"launch":   {"launch", "launch the challenge from the review step", s.launch},
	}
	return s
}

// run reads commands from in until EOF, quit or ctx is done. New transcript
// messages are printed as they arrive.
func (s *shell) run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- sc.Err()
	}()

	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	s.banner()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			s.printTranscript()
			return err
		case <-ticker.C:
			s.printTranscript()
		case line := <-lines:
			if err := s.exec(ctx, line); err != nil {
				if errors.Is(err, errQuit) {
					return nil
				}
				s.con.Printf("error: %v\n", err)
			}
			s.printTranscript()
		}
	}
}

func (s *shell) exec(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	name, args := strings.ToLower(fields[0]), fields[1:]
	switch name {
	case "quit", "exit":
		return errQuit
	case "help", "?":
		s.help()
		return nil
	}
	cmd, ok := s.commands[name]
	if !ok {
		// Bare text during scoping is conversation.
		if s.w.CurrentStep().ID == steps.ProblemScoping {
			return s.say(ctx, fields)
		}
		return fmt.Errorf("unknown command %q (try help)", name)
	}
	return cmd.run(ctx, args)
}

func (s *shell) banner() {
	def := s.w.CurrentStep()
	s.con.Printf("Challenge wizard, session %s\n", s.w.SessionID())
	s.con.Printf("Step 1: %s. Describe the problem you want to solve, or type help.\n", def.Title)
	if s.w.Scoping().Closed() {
		s.con.Printf("[warning] conversation channel unavailable; scoping can not proceed\n")
	}
}

func (s *shell) help() {
	names := make([]string, 0, len(s.commands))
	for n := range s.commands {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		c := s.commands[n]
		s.con.Printf("  %-24s %s\n", c.usage, c.help)
	}
	s.con.Printf("  %-24s %s\n", "quit", "leave the wizard")
}

func (s *shell) printTranscript() {
	msgs := s.w.Transcript().Snapshot()
	for _, m := range msgs[min(s.seen, len(msgs)):] {
		switch m.Role {
		case transcript.RoleUser:
			continue
		case transcript.RoleAI:
			s.con.Printf("ai> %s\n", m.Content)
		default:
			s.con.Printf("%s> %s\n", m.Role, m.Content)
		}
	}
	if s.seen < len(msgs) {
		s.seen = len(msgs)
		if sc, ok := s.w.Scoping().Scope(); ok && s.w.CurrentStep().ID == steps.ProblemScoping {
			s.con.Printf("Proposed scope: %s\n", sc.RefinedStatement())
			s.con.Printf("Type continue to accept or adjust to refine it.\n")
		}
	}
}

func (s *shell) say(_ context.Context, args []string) error {
	return s.w.Scoping().Submit(strings.Join(args, " "))
}

func (s *shell) cont(context.Context, []string) error {
	if err := s.w.Scoping().Continue(); err != nil {
		return err
	}
	s.stepChanged()
	return nil
}

func (s *shell) adjust(context.Context, []string) error {
	return s.w.Scoping().Adjust()
}

func (s *shell) next(context.Context, []string) error {
	if !s.w.Advance() {
		return errors.New("complete this step before moving on")
	}
	s.stepChanged()
	return nil
}

func (s *shell) back(context.Context, []string) error {
	if !s.w.Retreat() {
		return errors.New("already at the first step")
	}
	s.stepChanged()
	return nil
}

func (s *shell) gotoStep(_ context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: goto <n|step-id>")
	}
	i := steps.IndexOf(steps.ID(args[0]))
	if n, err := strconv.Atoi(args[0]); err == nil {
		i = n - 1
	}
	if i < 0 || i >= len(steps.Catalogue()) {
		return fmt.Errorf("no step %q", args[0])
	}
	if !s.w.SelectStep(i) {
		return fmt.Errorf("step %d is not reachable yet", i+1)
	}
	s.stepChanged()
	return nil
}

func (s *shell) stepChanged() {
	def := s.w.CurrentStep()
	s.con.Printf("Step %d: %s (%.0f%% complete)\n", s.w.CurrentIndex()+1, def.Title, s.w.Progress())
	if h, ok := steps.HelpFor(def.ID); ok {
		s.con.Printf("%s\n", h.Description)
	}
}

func (s *shell) show(context.Context, []string) error {
	id := s.w.CurrentStep().ID
	if r, ok := s.w.Record(id); ok {
		b, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return err
		}
		s.con.Printf("%s\n", b)
	} else {
		s.con.Printf("(no data yet)\n")
	}
	st := s.w.Suggestion(id)
	switch {
	case st.Loading:
		s.con.Printf("AI suggestion loading...\n")
	case st.Err != "":
		s.con.Printf("AI suggestion failed: %s\n", st.Err)
	case len(st.Data) > 0:
		if c := steps.Commentary(st.Data); c != "" {
			s.con.Printf("AI: %s\n", c)
		}
	}
	return nil
}

func (s *shell) edit(_ context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: edit <verb> [args...]")
	}
	return s.w.EditStep(args[0], args[1:])
}

func (s *shell) accept(context.Context, []string) error {
	return s.w.AcceptSuggestion()
}

func (s *shell) refresh(context.Context, []string) error {
	return s.w.RefreshSuggestions()
}

func (s *shell) feedback(_ context.Context, args []string) error {
	commentary := steps.Commentary(s.w.Suggestion(s.w.CurrentStep().ID).Data)
	return s.w.SubmitFeedback(commentary, strings.Join(args, " "))
}

func (s *shell) impact(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: impact <type>")
	}
	preview, err := s.w.ImpactPreview(ctx, args[0])
	if err != nil {
		return err
	}
	s.con.Printf("%s\n", preview)
	return nil
}

func (s *shell) status(context.Context, []string) error {
	for i, st := range s.w.StepStatuses() {
		mark := " "
		switch {
		case st.Completed:
			mark = "x"
		case !st.Enabled:
			mark = "-"
		}
		cursor := "  "
		if st.Active {
			cursor = "> "
		}
		s.con.Printf("%s[%s] %d. %s\n", cursor, mark, i+1, st.Title)
	}
	s.con.Printf("%d of 8 sections complete (%.0f%%)\n", s.w.CompletedCount(), s.w.Progress())
	return nil
}

func (s *shell) review(context.Context, []string) error {
	sum := s.w.Summary()
	for _, sec := range sum.Sections {
		mark := " "
		if sec.Completed {
			mark = "x"
		}
		s.con.Printf("[%s] %s\n", mark, sec.Title)
	}
	keys := make([]string, 0, len(sum.Highlights))
	for k := range sum.Highlights {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		s.con.Printf("%s: %s\n", k, sum.Highlights[k])
	}
	s.con.Printf("%d/%d complete (%d%%)\n", sum.CompletedCount, len(sum.Sections), sum.Percentage)
	for _, issue := range sum.ValidationIssues {
		s.con.Printf("! %s\n", issue)
	}
	return nil
}

func (s *shell) launch(ctx context.Context, _ []string) error {
	return s.w.Launch(ctx)
}
