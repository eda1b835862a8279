package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/common-nighthawk/go-figure"

	"go-artists-client/internal/app"
	"go-artists-client/internal/logger"
	"go-artists-client/internal/model"
)

func main() {
	logHandler := logger.NewPrettyHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(logHandler))

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	application, err := app.New()
	if err != nil {
		slog.Error("failed to initialize client", "error", err)
		os.Exit(1)
	}
	defer application.Close()

	if err := run(application, os.Args[1], os.Args[2:]); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func run(a *app.App, command string, args []string) error {
	ctx := context.Background()

	switch command {
	case "login":
		return runLogin(ctx, a, args)
	case "logout":
		a.Auth.Logout()
		return nil
	case "whoami":
		return runWhoami(a)
	case "artists":
		return runArtists(ctx, a, args)
	case "albums":
		return runAlbums(ctx, a, args)
	case "watch":
		return runWatch(a)
	default:
		usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func runLogin(ctx context.Context, a *app.App, args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	username := fs.String("u", "", "username")
	password := fs.String("p", "", "password")
	_ = fs.Parse(args)

	if *username == "" || *password == "" {
		return fmt.Errorf("login requires -u and -p")
	}

	user, err := a.Auth.Login(ctx, *username, *password)
	if err != nil {
		return err
	}

	fmt.Printf("logged in as %s\n", user.Username)
	return nil
}

func runWhoami(a *app.App) error {
	user := a.Session.Current()
	if user == nil || !a.Session.IsAuthenticated() {
		fmt.Println("not logged in")
		return nil
	}

	fmt.Printf("%s (token expires at %d)\n", user.Username, user.ExpiresAt)
	return nil
}

func runArtists(ctx context.Context, a *app.App, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("artists requires a subcommand: list, get, create, update, delete")
	}

	switch args[0] {
	case "list":
		fs := flag.NewFlagSet("artists list", flag.ExitOnError)
		page := pageFlags(fs, a.Config.DefaultPageSize)
		name := fs.String("name", "", "filter by name")
		_ = fs.Parse(args[1:])

		result, err := a.Artists.List(ctx, *page, *name)
		if err != nil {
			return err
		}
		for _, artist := range result.Content {
			fmt.Printf("%d\t%s\t(%d albums)\n", artist.ID, artist.Name, artist.AlbumCount)
		}
		fmt.Printf("page %d/%d, %d artists total\n", result.PageNumber+1, result.TotalPages, result.TotalElements)
		return nil

	case "get":
		id, err := idArg(args[1:])
		if err != nil {
			return err
		}
		artist, err := a.Artists.GetByID(ctx, id)
		if err != nil {
			return err
		}
		fmt.Printf("%d\t%s\n%s\n", artist.ID, artist.Name, artist.Bio)
		return nil

	case "create":
		fs := flag.NewFlagSet("artists create", flag.ExitOnError)
		name := fs.String("name", "", "artist name")
		bio := fs.String("bio", "", "artist biography")
		_ = fs.Parse(args[1:])
		if *name == "" {
			return fmt.Errorf("create requires -name")
		}
		artist, err := a.Artists.Create(ctx, model.ArtistRequest{Name: *name, Bio: *bio})
		if err != nil {
			return err
		}
		fmt.Printf("created artist %d\n", artist.ID)
		return nil

	case "update":
		if len(args) < 2 {
			return fmt.Errorf("update requires an id argument")
		}
		id, err := idArg(args[1:])
		if err != nil {
			return err
		}
		fs := flag.NewFlagSet("artists update", flag.ExitOnError)
		name := fs.String("name", "", "artist name")
		bio := fs.String("bio", "", "artist biography")
		_ = fs.Parse(args[2:])
		if *name == "" {
			return fmt.Errorf("update requires -name")
		}
		artist, err := a.Artists.Update(ctx, id, model.ArtistRequest{Name: *name, Bio: *bio})
		if err != nil {
			return err
		}
		fmt.Printf("updated artist %d\n", artist.ID)
		return nil

	case "delete":
		id, err := idArg(args[1:])
		if err != nil {
			return err
		}
		if err := a.Artists.Delete(ctx, id); err != nil {
			return err
		}
		fmt.Printf("deleted artist %d\n", id)
		return nil

	default:
		return fmt.Errorf("unknown artists subcommand %q", args[0])
	}
}

func runAlbums(ctx context.Context, a *app.App, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("albums requires a subcommand: list, search, get, create, delete, upload-cover")
	}

	switch args[0] {
	case "list":
		fs := flag.NewFlagSet("albums list", flag.ExitOnError)
		page := pageFlags(fs, a.Config.DefaultPageSize)
		_ = fs.Parse(args[1:])

		result, err := a.Albums.List(ctx, *page)
		if err != nil {
			return err
		}
		printAlbums(result)
		return nil

	case "search":
		fs := flag.NewFlagSet("albums search", flag.ExitOnError)
		page := pageFlags(fs, a.Config.DefaultPageSize)
		title := fs.String("title", "", "title to search for")
		_ = fs.Parse(args[1:])
		if *title == "" {
			return fmt.Errorf("search requires -title")
		}

		result, err := a.Albums.SearchByTitle(ctx, *page, *title)
		if err != nil {
			return err
		}
		printAlbums(result)
		return nil

	case "get":
		id, err := idArg(args[1:])
		if err != nil {
			return err
		}
		album, err := a.Albums.GetByID(ctx, id)
		if err != nil {
			return err
		}
		fmt.Printf("%d\t%s (%d)\n", album.ID, album.Title, album.ReleaseYear)
		for _, artist := range album.Artists {
			fmt.Printf("\t%s\n", artist.Name)
		}
		return nil

	case "create":
		fs := flag.NewFlagSet("albums create", flag.ExitOnError)
		title := fs.String("title", "", "album title")
		year := fs.Int("year", 0, "release year")
		artistIDs := fs.String("artists", "", "comma-separated artist ids")
		_ = fs.Parse(args[1:])
		if *title == "" {
			return fmt.Errorf("create requires -title")
		}
		ids, err := parseIDList(*artistIDs)
		if err != nil {
			return err
		}
		album, err := a.Albums.Create(ctx, model.AlbumRequest{Title: *title, ReleaseYear: *year, ArtistIDs: ids})
		if err != nil {
			return err
		}
		fmt.Printf("created album %d\n", album.ID)
		return nil

	case "delete":
		id, err := idArg(args[1:])
		if err != nil {
			return err
		}
		if err := a.Albums.Delete(ctx, id); err != nil {
			return err
		}
		fmt.Printf("deleted album %d\n", id)
		return nil

	case "upload-cover":
		if len(args) < 3 {
			return fmt.Errorf("upload-cover requires an album id and a file path")
		}
		id, err := idArg(args[1:2])
		if err != nil {
			return err
		}
		content, err := os.ReadFile(args[2])
		if err != nil {
			return fmt.Errorf("read cover file: %w", err)
		}
		album, err := a.Albums.UploadCover(ctx, id, filepath.Base(args[2]), content)
		if err != nil {
			return err
		}
		fmt.Printf("uploaded cover for album %d (%d covers)\n", album.ID, len(album.CoverURLs))
		return nil

	default:
		return fmt.Errorf("unknown albums subcommand %q", args[0])
	}
}

// runWatch connects the notification channel and prints events until
// interrupted. Session expiry checks run in the background so a long watch
// keeps its token fresh.
func runWatch(a *app.App) error {
	figure.NewFigure("Artists", "", true).Print()

	a.StartBackground()

	a.Notifications.AddListener(func(n model.Notification) {
		fmt.Printf("[%s] %s: %s\n", n.Type, n.Title, n.Message)
	})

	// Watching ends when the session dies.
	done := make(chan struct{})
	unsubscribe := a.Session.Subscribe(func(user *model.User) {
		if user == nil {
			select {
			case <-done:
			default:
				close(done)
			}
		}
	})
	defer unsubscribe()

	a.Notifications.Connect()
	slog.Info("watching for notifications", "url", a.Config.WebSocketURL)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
	case <-done:
		slog.Info("session ended, stopping watch")
	}

	return nil
}

func pageFlags(fs *flag.FlagSet, defaultSize int) *model.PageRequest {
	page := &model.PageRequest{}
	fs.IntVar(&page.Page, "page", 0, "page number (0-based)")
	fs.IntVar(&page.Size, "size", defaultSize, "page size")
	fs.StringVar(&page.Sort, "sort", "", "sort field")
	fs.StringVar(&page.Direction, "direction", "", "sort direction (asc|desc)")
	return page
}

func parseIDList(raw string) ([]int64, error) {
	if raw == "" {
		return nil, nil
	}

	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid artist id %q", part)
		}
		ids = append(ids, id)
	}

	return ids, nil
}

func idArg(args []string) (int64, error) {
	if len(args) == 0 {
		return 0, fmt.Errorf("an id argument is required")
	}

	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", args[0])
	}

	return id, nil
}

func printAlbums(result *model.PageResponse[model.AlbumSummary]) {
	for _, album := range result.Content {
		fmt.Printf("%d\t%s\n", album.ID, album.Title)
	}
	fmt.Printf("page %d/%d, %d albums total\n", result.PageNumber+1, result.TotalPages, result.TotalElements)
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: artists <command> [flags]

commands:
  login -u <username> -p <password>
  logout
  whoami
  artists list|get|create|update|delete
  albums  list|search|get|create|delete|upload-cover
  watch`)
}
