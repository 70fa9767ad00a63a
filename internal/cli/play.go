package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"showdown-grid/internal/config"
	"showdown-grid/internal/domain"
	"showdown-grid/internal/game"
	"showdown-grid/internal/gateway"
	"showdown-grid/internal/ranking"
)

type consoleOptions struct {
	ServerURL string
	Token     string
	Store     game.Options
}

func newPlayCmd(root *rootOptions, v *viper.Viper) *cobra.Command {
	opts := consoleOptions{}
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Host a game from the terminal against a running server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadOptional(root.configPath)
			if err != nil {
				return err
			}
			opts.Store = storeOptions(cfg)
			return runConsole(cmd.Context(), opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&opts.ServerURL, "api", "http://localhost:8080", "API base URL (env: SHOWDOWN_API)")
	fs.StringVar(&opts.Token, "token", "", "bearer token; signs in anonymously when empty or expired (env: SHOWDOWN_TOKEN)")
	bindEnv(v, fs)
	return cmd
}

// storeOptions maps the autosave section; unset values keep the Store defaults.
func storeOptions(cfg config.Config) game.Options {
	a := cfg.Autosave
	return game.Options{
		QuizSaveDelay:      config.TTLDuration(a.QuizDelay, game.DefaultQuizSaveDelay),
		SessionSaveDelay:   config.TTLDuration(a.SessionDelay, game.DefaultSessionSaveDelay),
		SessionMinInterval: config.TTLDuration(a.SessionMinInterval, game.DefaultSessionMinInterval),
		SpinDelay:          config.TTLDuration(a.SpinDelay, game.DefaultSpinDelay),
		Logger:             slog.Default(),
	}
}

var (
	errStyle  = color.New(color.FgRed)
	warnStyle = color.New(color.FgYellow)
	headStyle = color.New(color.FgCyan, color.Bold)
	doneStyle = color.New(color.Faint)
	turnStyle = color.New(color.FgGreen, color.Bold)
)

type console struct {
	ctx    context.Context
	client *gateway.Client
	store  *game.Store
	out    io.Writer
	public []domain.QuizMetadata
}

func runConsole(ctx context.Context, opts consoleOptions, in io.Reader, out io.Writer) error {
	client := gateway.New(opts.ServerURL, nil)
	if err := signIn(ctx, client, opts.Token, out); err != nil {
		return err
	}

	store := game.New(client, opts.Store)
	defer store.Close()
	if err := store.Load(ctx); err != nil {
		return err
	}

	c := &console{ctx: ctx, client: client, store: store, out: out}
	c.printBoard()
	c.printf("type %q for commands\n", "help")

	scanner := bufio.NewScanner(in)
	for {
		c.printf("> ")
		if !scanner.Scan() {
			break
		}
		quit, err := c.exec(scanner.Text())
		if err != nil {
			errStyle.Fprintln(out, "error:", err)
		}
		if quit {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if err := store.FlushSession(ctx); err != nil && !errors.Is(err, domain.ErrNoActiveRun) {
		return err
	}
	return store.Flush(ctx)
}

func signIn(ctx context.Context, client *gateway.Client, token string, out io.Writer) error {
	if token != "" {
		client.SetToken(token)
		p, err := client.Verify(ctx)
		if err == nil {
			fmt.Fprintf(out, "signed in as %s\n", p.UserID)
			return nil
		}
		if !gateway.IsUnauthorized(err) {
			return err
		}
		warnStyle.Fprintln(out, "token rejected, starting a fresh anonymous identity")
	}
	sess, err := client.SignInAnonymous(ctx)
	if err != nil {
		return fmt.Errorf("anonymous sign-in: %w", err)
	}
	fmt.Fprintf(out, "signed in anonymously as %s\ntoken: %s\n", sess.UserID, sess.Token)
	return nil
}

func (c *console) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

const consoleHelp = `board                      show the board
teams                      show the standings
select <cat> <question>    open a question (1-based)
show                       show the open question and its answer
right <team> [points]      award the open question
wrong <team> [points]      deduct the penalty
end | skip                 close the question and pass the turn
adjust <team> <delta> [why] manual correction
undo                       revert the newest log entry
turn | next | give <team>  pick a random team, rotate, or hand over the turn
addteam <name>             add a team
title <text>               rename the quiz
start | finish             open or complete the live run
runs                       list completed runs
quizzes | switch <n>       list your quizzes, switch to one
new <title>                create a quiz
public | playpublic <n>    list public quizzes, play one
save                       save now
status                     show save and run state
quit                       save and exit
`

func (c *console) exec(line string) (bool, error) {
	args := strings.Fields(line)
	if len(args) == 0 {
		return false, nil
	}
	cmd, args := strings.ToLower(args[0]), args[1:]

	switch cmd {
	case "help", "?":
		c.printf("%s", consoleHelp)
	case "board":
		c.printBoard()
	case "teams", "rank":
		c.printTeams()
	case "select":
		if len(args) != 2 {
			return false, errors.New("usage: select <cat> <question>")
		}
		return false, c.selectQuestion(args[0], args[1])
	case "show":
		c.printQuestion(true)
	case "right", "wrong":
		if len(args) < 1 {
			return false, fmt.Errorf("usage: %s <team> [points]", cmd)
		}
		team, err := c.team(args[0])
		if err != nil {
			return false, err
		}
		custom, err := optionalInt(args[1:])
		if err != nil {
			return false, err
		}
		if cmd == "right" {
			c.report(c.store.Dispatch(game.AwardPositive{TeamID: team.ID, CustomPoints: custom}))
		} else {
			c.report(c.store.Dispatch(game.AwardNegative{TeamID: team.ID, CustomPoints: custom}))
		}
		c.printTeams()
	case "end":
		c.report(c.store.Dispatch(game.EndRound{}))
		c.printTurn()
	case "skip":
		c.report(c.store.Dispatch(game.SkipQuestion{}))
		c.printTurn()
	case "adjust":
		if len(args) < 2 {
			return false, errors.New("usage: adjust <team> <delta> [reason]")
		}
		team, err := c.team(args[0])
		if err != nil {
			return false, err
		}
		delta, err := strconv.Atoi(args[1])
		if err != nil {
			return false, fmt.Errorf("delta %q is not a number", args[1])
		}
		c.report(c.store.Dispatch(game.ManualAdjust{TeamID: team.ID, Delta: delta, Reason: strings.Join(args[2:], " ")}))
		c.printTeams()
	case "undo":
		c.report(c.store.Dispatch(game.UndoAdjustment{}))
		c.printTeams()
	case "turn":
		c.report(c.store.Dispatch(game.InitializeTurn{}))
		c.printf("spinning...\n")
	case "next":
		c.report(c.store.Dispatch(game.NextTurn{}))
		c.printTurn()
	case "give":
		if len(args) != 1 {
			return false, errors.New("usage: give <team>")
		}
		team, err := c.team(args[0])
		if err != nil {
			return false, err
		}
		c.report(c.store.Dispatch(game.SetCurrentTurn{TeamID: team.ID}))
		c.printTurn()
	case "addteam":
		c.report(c.store.Dispatch(game.AddTeam{Name: strings.Join(args, " ")}))
		c.printTeams()
	case "title":
		c.report(c.store.Dispatch(game.SetTitle{Title: strings.Join(args, " ")}))
	case "start":
		run, err := c.store.StartSession(c.ctx)
		if err != nil {
			return false, err
		}
		c.printf("run %s live since %s\n", run.ID, run.StartedAt.Local().Format("15:04:05"))
	case "finish":
		run, err := c.store.CompleteSession(c.ctx)
		if err != nil {
			return false, err
		}
		c.printRun(run)
	case "runs":
		return false, c.listRuns()
	case "quizzes":
		if err := c.store.RefreshQuizzes(c.ctx); err != nil {
			return false, err
		}
		c.printQuizzes(c.store.Status().Quizzes)
	case "switch":
		meta, err := pick(c.store.Status().Quizzes, args)
		if err != nil {
			return false, err
		}
		if err := c.store.SwitchQuiz(c.ctx, meta.ID); err != nil {
			return false, err
		}
		c.printBoard()
	case "new":
		meta, err := c.store.CreateQuiz(c.ctx, strings.Join(args, " "), "")
		if err != nil {
			return false, err
		}
		c.printf("created %q (%s)\n", meta.Title, meta.ID)
	case "public":
		list, err := c.client.PublicQuizzes(c.ctx)
		if err != nil {
			return false, err
		}
		c.public = list
		c.printQuizzes(list)
	case "playpublic":
		meta, err := pick(c.public, args)
		if err != nil {
			return false, err
		}
		if err := c.store.LoadPublicQuiz(c.ctx, meta.ID); err != nil {
			return false, err
		}
		c.printBoard()
	case "save":
		if err := c.store.SaveQuiz(c.ctx); err != nil {
			return false, err
		}
		c.printf("saved\n")
	case "status":
		c.printStatus()
	case "quit", "exit":
		return true, nil
	default:
		return false, fmt.Errorf("unknown command %q", cmd)
	}
	return false, nil
}

func (c *console) report(res game.Result) {
	if res.Outcome == game.Ignored {
		warnStyle.Fprintf(c.out, "ignored: %s\n", res.Reason)
	}
}

func (c *console) selectQuestion(catArg, qArg string) error {
	st := c.store.Snapshot()
	ci, err := index(catArg, len(st.Categories))
	if err != nil {
		return fmt.Errorf("category: %w", err)
	}
	cat := st.Categories[ci]
	qi, err := index(qArg, len(cat.Questions))
	if err != nil {
		return fmt.Errorf("question: %w", err)
	}
	if cat.Questions[qi].Answered {
		warnStyle.Fprintln(c.out, "already answered, opening anyway")
	}
	c.report(c.store.Dispatch(game.SelectQuestion{CategoryID: cat.ID, QuestionID: cat.Questions[qi].ID}))
	c.printQuestion(false)
	return nil
}

func (c *console) team(arg string) (domain.Team, error) {
	teams := c.store.Snapshot().Teams
	i, err := index(arg, len(teams))
	if err != nil {
		return domain.Team{}, fmt.Errorf("team: %w", err)
	}
	return teams[i], nil
}

func index(arg string, n int) (int, error) {
	i, err := strconv.Atoi(arg)
	if err != nil || i < 1 || i > n {
		return 0, fmt.Errorf("%q is not between 1 and %d", arg, n)
	}
	return i - 1, nil
}

func optionalInt(args []string) (*int, error) {
	if len(args) == 0 {
		return nil, nil
	}
	v, err := strconv.Atoi(args[0])
	if err != nil {
		return nil, fmt.Errorf("points %q is not a number", args[0])
	}
	return &v, nil
}

func pick(list []domain.QuizMetadata, args []string) (domain.QuizMetadata, error) {
	if len(args) != 1 {
		return domain.QuizMetadata{}, errors.New("expected one list number")
	}
	i, err := index(args[0], len(list))
	if err != nil {
		return domain.QuizMetadata{}, err
	}
	return list[i], nil
}

func (c *console) printBoard() {
	st := c.store.Snapshot()
	headStyle.Fprintln(c.out, st.Title)
	for ci, cat := range st.Categories {
		c.printf("%d. %s\n", ci+1, cat.Name)
		for qi, q := range cat.Questions {
			line := fmt.Sprintf("   %d) %4d", qi+1, q.Points)
			if q.IsJoker {
				line += " joker"
			}
			if q.Answered {
				doneStyle.Fprintln(c.out, line+"  done")
				continue
			}
			c.printf("%s\n", line)
		}
	}
}

func (c *console) printQuestion(withAnswer bool) {
	lq := c.store.Snapshot().LastQuestion
	if lq == nil {
		c.printf("no open question\n")
		return
	}
	headStyle.Fprintf(c.out, "%s for %d\n", lq.CategoryName, lq.Points)
	c.printf("%s\n", lq.Question)
	if lq.IsJoker {
		c.printf("joker: %s (%ds)\n", lq.JokerTask, lq.JokerTimer)
	}
	if withAnswer {
		c.printf("answer: %s\n", lq.Answer)
	}
}

func (c *console) printTeams() {
	st := c.store.Snapshot()
	for _, s := range ranking.Rank(st.Teams) {
		line := fmt.Sprintf("%2d. %-20s %6d", s.Rank, s.Team.Name, s.Team.Score)
		if s.Team.ID == st.CurrentTurnTeamID {
			turnStyle.Fprintln(c.out, line+"  <- turn")
			continue
		}
		c.printf("%s\n", line)
	}
}

func (c *console) printTurn() {
	st := c.store.Snapshot()
	for _, t := range st.Teams {
		if t.ID == st.CurrentTurnTeamID {
			turnStyle.Fprintf(c.out, "turn: %s\n", t.Name)
			return
		}
	}
	if st.InitialTurnSelection {
		c.printf("spinning...\n")
	}
}

func (c *console) printRun(run domain.QuizRun) {
	headStyle.Fprintf(c.out, "run %s finished\n", run.ID)
	if run.DurationSeconds != nil {
		c.printf("duration %ds, ", *run.DurationSeconds)
	}
	c.printf("%d/%d answered (%.1f%%)\n", run.AnsweredQuestions, run.TotalQuestions, run.CompletionPercentage)
	for _, r := range run.TeamResults {
		c.printf("%2d. %-20s %6d\n", r.Rank, r.TeamName, r.FinalScore)
	}
}

func (c *console) listRuns() error {
	runs, err := c.client.ListRuns(c.ctx, c.store.Snapshot().QuizID, 0)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		c.printf("no completed runs\n")
		return nil
	}
	for _, r := range runs {
		winner := "-"
		if r.WinningTeamName != nil {
			winner = *r.WinningTeamName
		}
		ended := ""
		if r.EndedAt != nil {
			ended = r.EndedAt.Local().Format("2006-01-02 15:04")
		}
		c.printf("%s  %s  %.0f%%  winner %s\n", ended, r.QuizTitle, r.CompletionPercentage, winner)
	}
	return nil
}

func (c *console) printQuizzes(list []domain.QuizMetadata) {
	if len(list) == 0 {
		c.printf("no quizzes\n")
		return
	}
	active := c.store.Snapshot().QuizID
	for i, q := range list {
		mark := " "
		if q.ID == active {
			mark = "*"
		}
		c.printf("%s%2d. %s\n", mark, i+1, q.Title)
	}
}

func (c *console) printStatus() {
	st := c.store.Status()
	c.printf("authenticated %t, unsaved changes %t, public quiz %t\n",
		st.Authenticated, st.HasUnsavedChanges, st.PlayingPublicQuiz)
	if !st.LastSavedAt.IsZero() {
		c.printf("last saved %s\n", st.LastSavedAt.Local().Format("15:04:05"))
	}
	if st.LastSaveError != nil {
		errStyle.Fprintln(c.out, "last save failed:", st.LastSaveError)
	}
	if st.ActiveRunID != "" {
		c.printf("live run %s since %s\n", st.ActiveRunID, st.RunStartedAt.Local().Format("15:04:05"))
	}
}
