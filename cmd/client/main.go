package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	"github.com/SplayLobster/MemoApp2/internal/config"
	"github.com/SplayLobster/MemoApp2/internal/document"
	"github.com/SplayLobster/MemoApp2/internal/document/backend"
	"github.com/SplayLobster/MemoApp2/internal/lock"
	"github.com/SplayLobster/MemoApp2/internal/logger"
	"github.com/SplayLobster/MemoApp2/internal/model"
	"github.com/SplayLobster/MemoApp2/internal/repository/remote"
	svc "github.com/SplayLobster/MemoApp2/internal/service"
	"github.com/SplayLobster/MemoApp2/internal/service/notes"
)

const usage = `usage: client [-config config.yml] <command>

commands:
  list                    show all notes
  add <title> [content]   create a classic note
  edit <id> <content>     replace the content of a classic note
  rm <id>                 delete a note
`

func main() {
	configFile := flag.String("config", "config.yml", "path to config file")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	appConfig, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Error initializing config: %v", err)
	}

	zlog, err := logger.New(appConfig.Logger, "ono-client")
	if err != nil {
		log.Fatalf("Error initializing logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, appConfig, zlog, flag.Args(), os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			flag.Usage()
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

var (
	errUsage       = errors.New("invalid usage")
	errNotEditable = errors.New("edit supports classic notes only")
)

func run(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger, args []string, out io.Writer) error {
	client, closeFn, err := backend.Open(ctx, cfg.Store.Backend, cfg.Store, log)
	if err != nil {
		return err
	}
	defer func() { _ = closeFn() }()

	var opts []notes.Option
	if url := cfg.Events.TopicURL; url != "" {
		publisher, err := notes.OpenTopicPublisher(ctx, url)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := publisher.Shutdown(shutdownCtx); err != nil {
				log.Warnw("shutdown event topic failed", "error", err)
			}
		}()
		opts = append(opts, notes.WithPublisher(publisher))
	}

	service := newService(client, cfg, log, opts...)
	return runCommand(ctx, service, args, out)
}

func newService(client document.Client, cfg *config.Config, log *zap.SugaredLogger, opts ...notes.Option) svc.NoteService {
	lc := cfg.Lock
	lockOpts := lock.Options{
		Backoff: lock.Backoff{
			Interval:    config.Millis(lc.IntervalMS),
			Jitter:      config.Millis(lc.JitterMS),
			MaxAttempts: lc.MaxAttempts,
			Deadline:    config.Millis(lc.DeadlineMS),
		},
		LeaseTTL:       config.Millis(lc.LeaseTTLMS),
		ReleaseTimeout: config.Millis(lc.ReleaseTimeoutMS),
	}
	key := document.Key{AppCode: cfg.Store.AppCode, DataName: cfg.Store.DataName}
	repo := remote.New(client, key, lockOpts, log)
	return notes.NewNoteService(repo, notes.NewEventService(), log, opts...)
}

func runCommand(ctx context.Context, service svc.NoteService, args []string, out io.Writer) error {
	switch args[0] {
	case "list":
		list, err := service.List(ctx)
		if err != nil {
			return err
		}
		printNotes(out, list)
		return nil

	case "add":
		if len(args) < 2 {
			return errUsage
		}
		draft := svc.Draft{Title: args[1], Author: os.Getenv("USER")}
		if len(args) > 2 {
			draft.Content = strings.Join(args[2:], " ")
		}
		note, err := service.Create(ctx, draft)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, note.ID)
		return nil

	case "edit":
		if len(args) < 3 {
			return errUsage
		}
		note, err := service.Get(ctx, args[1])
		if err != nil {
			return err
		}
		// У заметки-списка нет текста, Content молча потерялся бы при записи
		if note.Kind != model.KindClassic {
			return fmt.Errorf("%w: note %s is a %s note", errNotEditable, note.ID, note.Kind)
		}
		content := strings.Join(args[2:], " ")
		_, err = service.Update(ctx, note.ID, model.Patch{Content: &content})
		return err

	case "rm":
		if len(args) != 2 {
			return errUsage
		}
		return service.Delete(ctx, args[1])

	default:
		return errUsage
	}
}

func printNotes(out io.Writer, list []model.Note) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tTITLE\tCONTENT\tUPDATED")
	for _, n := range list {
		body := n.Content
		if n.Kind == model.KindList {
			parts := make([]string, len(n.Items))
			for i, it := range n.Items {
				mark := "[ ]"
				if it.Done {
					mark = "[x]"
				}
				parts[i] = mark + " " + it.Text
			}
			body = strings.Join(parts, "; ")
		}
		updated := ""
		if !n.Timestamp.IsZero() {
			updated = n.Timestamp.Local().Format(time.DateTime)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", n.ID, n.Kind, n.Title, body, updated)
	}
	_ = w.Flush()
}
