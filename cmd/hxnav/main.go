package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"

	"github.com/pthm/hxnav"
	"github.com/pthm/hxnav/lib/config"
	"github.com/pthm/hxnav/lib/dom"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var err error
	switch cmd {
	case "walk":
		err = runWalk(ctx, args, os.Stdout)
	case "links":
		err = runLinks(ctx, args, os.Stdout)
	case "config":
		err = runConfig(args, os.Stdout)
	case "version":
		fmt.Printf("hxnav version %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`hxnav - headless SPA navigation for server-rendered sites

Usage:
  hxnav <command> [arguments]

Commands:
  walk <url> [paths]    Open url, navigate to each path in turn and report
  links <url>           Open url and classify its links and forms
  config [file]         Print the effective runtime configuration
  version               Print version
  help                  Show this help

Options for walk and links:
  --config <file>       Runtime configuration (YAML, JSON or TOML)

Examples:
  hxnav walk http://localhost:8080 /about /todo/todo-1 back
  hxnav links --config hxnav.yaml http://localhost:8080
  HXNAV_LOG_LEVEL=debug hxnav walk http://localhost:8080 /about`)
}

// splitConfig pulls --config out of args.
func splitConfig(args []string) (path string, rest []string, err error) {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--config":
			if i+1 >= len(args) {
				return "", nil, fmt.Errorf("--config needs a file")
			}
			path = args[i+1]
			i++
		case strings.HasPrefix(arg, "--config="):
			path = strings.TrimPrefix(arg, "--config=")
		default:
			rest = append(rest, arg)
		}
	}
	return path, rest, nil
}

// openRuntime loads configuration and opens target in a fresh runtime.
func openRuntime(ctx context.Context, configPath, target string) (*hxnav.Runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	rt, err := hxnav.NewFromConfig(dom.New(nil, nil), cfg, &http.Client{})
	if err != nil {
		return nil, err
	}
	if err := rt.Open(ctx, target); err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

func runWalk(ctx context.Context, args []string, out io.Writer) error {
	configPath, rest, err := splitConfig(args)
	if err != nil {
		return err
	}
	if len(rest) == 0 {
		return fmt.Errorf("walk needs a url")
	}

	rt, err := openRuntime(ctx, configPath, rest[0])
	if err != nil {
		return err
	}
	defer rt.Close()
	fmt.Fprintf(out, "open      %s %q\n", rt.Document().Location(), rt.Document().Title())

	failed := 0
	for _, step := range rest[1:] {
		var rep hxnav.Report
		if step == "back" {
			rep = rt.Back(ctx)
		} else {
			rep = rt.Go(ctx, step)
		}
		fmt.Fprintf(out, "%-9s %s %q\n", rep.Outcome, rep.URL, rt.Document().Title())
		if err := rep.Error(); err != nil {
			failed++
			fmt.Fprintf(out, "          %v\n", err)
		}
	}
	fmt.Fprintf(out, "history   %s\n", strings.Join(rt.History(), " "))
	if failed > 0 {
		return fmt.Errorf("%d of %d steps failed", failed, len(rest)-1)
	}
	return nil
}

func runLinks(ctx context.Context, args []string, out io.Writer) error {
	configPath, rest, err := splitConfig(args)
	if err != nil {
		return err
	}
	if len(rest) != 1 {
		return fmt.Errorf("links needs exactly one url")
	}

	rt, err := openRuntime(ctx, configPath, rest[0])
	if err != nil {
		return err
	}
	defer rt.Close()

	in := rt.Interceptor()
	anchors, _ := dom.Select(rt.Document().Root(), "a")
	for _, a := range anchors {
		fmt.Fprintf(out, "%-10s %s\n", in.ClassifyLink(a), dom.AttrOr(a, "href", ""))
	}
	res := in.Scan(ctx)
	fmt.Fprintf(out, "%d navigable, %d back, %d ignored, %d rejected, %d forms\n",
		res.Links[hxnav.LinkNavigable], res.Links[hxnav.LinkBack],
		res.Links[hxnav.LinkIgnored], res.Links[hxnav.LinkRejected], res.Forms)
	return nil
}

func runConfig(args []string, out io.Writer) error {
	if len(args) > 1 {
		return fmt.Errorf("config takes at most one file")
	}
	path := ""
	if len(args) == 1 {
		path = args[0]
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(cfg)
}
