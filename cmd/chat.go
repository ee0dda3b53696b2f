package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jingjing529/ai-calendar-agent/internal/action"
	"github.com/jingjing529/ai-calendar-agent/internal/chat"
	"github.com/jingjing529/ai-calendar-agent/internal/dispatch"
	"github.com/jingjing529/ai-calendar-agent/internal/logging"
	"github.com/jingjing529/ai-calendar-agent/internal/prompt"
	"github.com/jingjing529/ai-calendar-agent/internal/server"
)

func newChatCmd() *cobra.Command {
	var (
		timezone string
		apply    bool
		relay    bool
		account  string
	)

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Chat with the calendar agent from the terminal",
		Long: `Chat with the calendar agent from the terminal. With a message argument one
turn is run; without, messages are read from stdin until EOF.

Replies are printed as they stream. The proposed action is shown after each
reply and applied to the primary calendar only with --apply.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			logger := newLogger(cfg, cmd.ErrOrStderr())
			tel, err := newTelemetry(ctx, logger)
			if err != nil {
				return err
			}
			defer tel.shutdown(logger)

			var runnerOpts []chat.Option
			if relay {
				runnerOpts = append(runnerOpts, chat.WithPassthrough())
			}
			runner, err := newRunner(cfg, logger, tel, runnerOpts...)
			if err != nil {
				return err
			}

			publisher, err := newPublisher(cfg)
			if err != nil {
				return err
			}
			defer func() {
				if err := publisher.Close(); err != nil {
					logger.Warn("error closing event publisher", logging.Err(err))
				}
			}()

			dispatchOpts := append(dispatchOptions(logger, tel, publisher), dispatch.WithSource(dispatch.SourceCLI))
			sc := server.NewServerContext(ctx, tokenProvider(cfg, account, logger), runner,
				server.WithCalendarOptions(calendarOptions(cfg, tel)...),
				server.WithDispatchOptions(dispatchOpts...),
				server.WithInstrumentation(tel.metrics(), tel.audit),
				server.WithDefaultTimezone(cfg.Agent.DefaultTimezone),
			)
			defer func() { _ = sc.Shutdown() }()

			session := &chatSession{
				sc:       sc,
				out:      cmd.OutOrStdout(),
				timezone: prompt.ResolveTimezone(timezone, cfg.Agent.DefaultTimezone),
				apply:    apply,
			}

			if len(args) > 0 {
				return session.turn(ctx, strings.Join(args, " "))
			}
			return session.loop(ctx, cmd.InOrStdin())
		},
	}

	cmd.Flags().StringVar(&timezone, "timezone", "", "IANA timezone sent with each message (default: DEFAULT_TIMEZONE or UTC)")
	cmd.Flags().BoolVar(&apply, "apply", false, "Apply proposed actions to the calendar")
	cmd.Flags().BoolVar(&relay, "relay", false, "Send messages unchanged; use when the agent URL points at a relay that builds its own prompt")
	cmd.Flags().StringVar(&account, "account", "default", "Name of the stored Google token to use")

	return cmd
}

var errNoMessage = errors.New("no message provided")

// chatSession runs terminal chat turns against a server context.
type chatSession struct {
	sc       *server.ServerContext
	out      io.Writer
	timezone string
	apply    bool
}

// loop runs one turn per non-empty input line until EOF.
func (s *chatSession) loop(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprint(s.out, "> ")
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			if err := s.turn(ctx, line); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				fmt.Fprintf(s.out, "error: %v\n", err)
			}
		}
		fmt.Fprint(s.out, "> ")
	}
	fmt.Fprintln(s.out)
	return scanner.Err()
}

// turn streams one reply and reports, and optionally applies, its action.
func (s *chatSession) turn(ctx context.Context, message string) error {
	if strings.TrimSpace(message) == "" {
		return errNoMessage
	}
	t := chat.Turn{
		Message:   message,
		Timezone:  s.timezone,
		LastEvent: s.sc.LastEvent(),
	}
	if cal, err := s.sc.Calendar(); err == nil {
		t.Events = cal
	}

	outcome, err := s.sc.Runner().Run(ctx, t, func(fragment string) error {
		_, err := io.WriteString(s.out, fragment)
		return err
	})
	fmt.Fprintln(s.out)
	if err != nil {
		return err
	}

	if !outcome.HasAction() {
		return nil
	}
	desc := outcome.Action
	fmt.Fprintf(s.out, "[proposed %s%s]\n", desc.Action, idSuffix(desc.ID()))
	if !s.apply {
		return nil
	}
	return s.applyAction(ctx, desc)
}

func (s *chatSession) applyAction(ctx context.Context, desc *action.Descriptor) error {
	d, err := s.sc.Dispatcher()
	if err != nil {
		return fmt.Errorf("cannot apply action: %w", err)
	}
	res, err := d.Dispatch(ctx, desc)
	if err != nil {
		if dispatch.IsValidationError(err) {
			fmt.Fprintf(s.out, "[not applied: %v]\n", err)
			return nil
		}
		return fmt.Errorf("failed to apply %s: %w", desc.Action, err)
	}

	switch res.Action {
	case action.KindInsert, action.KindEdit:
		s.sc.SetLastEvent(res.LastEvent)
	case action.KindDelete:
		if last := s.sc.LastEvent(); last != nil && last.ID == res.EventID {
			s.sc.SetLastEvent(nil)
		}
	}
	fmt.Fprintf(s.out, "[applied %s%s]\n", res.Action, idSuffix(res.EventID))
	return nil
}

func idSuffix(id string) string {
	if id == "" {
		return ""
	}
	return " " + id
}
