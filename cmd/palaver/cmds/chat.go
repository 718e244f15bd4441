package cmds

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/palaver/pkg/controller"
	"github.com/go-go-golems/palaver/pkg/events"
	"github.com/go-go-golems/palaver/pkg/ui"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func NewChatCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start a conversation with the chat service",
		Long: "Start a conversation with the chat service. On a terminal this opens an interactive view,\n" +
			"otherwise every line read from stdin is sent as a message and the transcript is printed.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings()
			if err != nil {
				return err
			}

			interactive := isTerminal(os.Stdin) && isTerminal(os.Stdout)
			if interactive {
				// log lines would tear the view, only the log file stays
				if err := InitLoggerFromViper(false); err != nil {
					return err
				}
			}

			ctrl, c, err := newController(s)
			if err != nil {
				return err
			}

			router, err := events.NewRouter(viper.GetBool("verbose"))
			if err != nil {
				return err
			}
			defer func() {
				_ = router.Close()
			}()

			unsubscribe := ctrl.Store().Subscribe(router.Observer())
			defer unsubscribe()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			eg, ctx := errgroup.WithContext(ctx)

			log.Info().
				Str("base_url", c.BaseURL()).
				Str("overlap_policy", string(ctrl.Policy())).
				Bool("interactive", interactive).
				Msg("starting chat")

			var run func(ctx context.Context) error
			if interactive {
				markdownStyle := ""
				if s.Chat.Markdown {
					markdownStyle = ui.MarkdownStyle()
				}
				model := ui.NewModel(ctrl,
					ui.WithContext(ctx),
					ui.WithTitle("palaver · "+c.BaseURL()),
					ui.WithBootstrap(!s.Chat.NoWelcome),
					ui.WithMarkdownStyle(markdownStyle),
				)
				p := tea.NewProgram(model, tea.WithAltScreen())
				router.Handle("ui-forward", ui.ForwardFunc(p))

				run = func(ctx context.Context) error {
					_, err := p.Run()
					return err
				}
			} else {
				router.Handle("printer", events.TranscriptPrinterFunc(cmd.OutOrStdout()))

				run = func(ctx context.Context) error {
					return runLines(ctx, cmd, ctrl, !s.Chat.NoWelcome)
				}
			}

			eg.Go(func() error {
				return router.Run(ctx)
			})
			eg.Go(func() error {
				defer cancel()
				select {
				case <-router.Running():
				case <-ctx.Done():
					return ctx.Err()
				}
				return run(ctx)
			})

			return eg.Wait()
		},
	}

	return cmd
}

func runLines(ctx context.Context, cmd *cobra.Command, ctrl *controller.Controller, welcome bool) error {
	if welcome {
		// failure is logged, the conversation starts empty
		_ = ctrl.Bootstrap(ctx)
	}
	return ui.RunLines(ctx, cmd.InOrStdin(), cmd.ErrOrStderr(), ctrl)
}
