package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"strings"
	"text/tabwriter"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/vellum/internal"
	"github.com/starford/vellum/internal/contenttype"
	"github.com/starford/vellum/internal/convert"
	"github.com/starford/vellum/internal/mcpserver"
	"github.com/starford/vellum/internal/storage"
	pkgconfig "github.com/starford/vellum/pkg/config"
)

var version = "dev"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if v := cmd.String("vault"); v != "" {
		cfg.Vault.Path = v
	}
	if cmd.Bool("no-cache") {
		cfg.Cache.Enabled = false
	}
	return cfg, nil
}

// openServices builds the shared services for one-shot commands. Logs go to
// stderr so stdout stays clean for converted output and the MCP transport.
func openServices(ctx context.Context, cmd *cli.Command) (*internal.Services, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger := internal.NewLogger(cfg, os.Stderr)
	slog.SetDefault(logger)
	return internal.OpenServices(ctx, cfg, logger)
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
		internal.WithVersion(version),
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

func parseProps(pairs []string) (convert.Properties, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	props := convert.Properties{}
	for _, kv := range pairs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid property %q, want key=value", kv)
		}
		props[k] = v
	}
	return props, nil
}

func convertDocument(ctx context.Context, cmd *cli.Command) error {
	if cmd.NArg() != 1 {
		return fmt.Errorf("convert: expected exactly one document path")
	}
	to := contenttype.ForHint(cmd.String("to"))
	if to == "" {
		return fmt.Errorf("convert: unknown target type %q", cmd.String("to"))
	}
	props, err := parseProps(cmd.StringSlice("prop"))
	if err != nil {
		return err
	}

	svc, err := openServices(ctx, cmd)
	if err != nil {
		return err
	}
	defer svc.Close()

	var doc storage.Document
	if arg := cmd.Args().First(); arg == "-" {
		from := contenttype.ForHint(cmd.String("from"))
		if from == "" {
			return fmt.Errorf("convert: --from is required when reading stdin")
		}
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		if props == nil {
			props = convert.Properties{}
		}
		doc = storage.NewFragment(svc.Vault.Document("/"), "/stdin."+contenttype.Extension(from), from, data)
	} else {
		doc = svc.Vault.Document(path.Join("/", arg))
	}

	out := io.Writer(os.Stdout)
	if p := cmd.String("out"); p != "" {
		f, err := os.Create(p)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		out = f
	}

	return svc.Manager.ConvertTo(ctx, doc, to, props, out)
}

func listConverters(ctx context.Context, cmd *cli.Command) error {
	svc, err := openServices(ctx, cmd)
	if err != nil {
		return err
	}
	defer svc.Close()

	reg := svc.Manager.Registry()
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	from, to := contenttype.ForHint(cmd.String("from")), contenttype.ForHint(cmd.String("to"))
	if from == "" || to == "" {
		fmt.Fprintln(tw, "FROM\tTO\tLOSSLESS\tCONVERTER")
		for _, e := range reg.Edges() {
			fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", e.From, e.To, e.Lossless, e.Name)
		}
		return nil
	}

	fmt.Fprintf(tw, "selected\t%s\n", convert.Name(svc.Manager.Converter(from, to)))
	for _, p := range convert.Describe(reg.Paths(from, to)) {
		fmt.Fprintf(tw, "%.0f\t%s\n", p.Score, strings.Join(p.Stages, " -> "))
	}
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	svc, err := openServices(ctx, cmd)
	if err != nil {
		return err
	}
	defer svc.Close()

	return mcpserver.New(svc.Manager, svc.Vault, version).ServeStdio()
}

func main() {
	cmd := &cli.Command{
		Name:           "vellum",
		Usage:          "Wiki document vault with conversion to HTML, slides, ODT and plain text",
		Version:        version,
		DefaultCommand: "serve",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "vault",
				Usage:   "Override the vault directory",
				Sources: cli.EnvVars("VELLUM_VAULT"),
			},
			&cli.BoolFlag{
				Name:  "no-cache",
				Usage: "Disable the conversion cache",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP server",
				Action: serve,
			},
			{
				Name:      "convert",
				Usage:     "Convert a vault document and write the result",
				ArgsUsage: "<path|->",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "to", Aliases: []string{"t"}, Value: contenttype.HTML, Usage: "Target content type or extension"},
					&cli.StringFlag{Name: "from", Aliases: []string{"f"}, Usage: "Source type when reading stdin"},
					&cli.StringSliceFlag{Name: "prop", Aliases: []string{"p"}, Usage: "Conversion property as key=value"},
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Output file (default stdout)"},
				},
				Action: convertDocument,
			},
			{
				Name:  "converters",
				Usage: "List converters, or the candidate paths between two types",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "from", Usage: "Source content type or extension"},
					&cli.StringFlag{Name: "to", Usage: "Target content type or extension"},
				},
				Action: listConverters,
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools over stdio",
				Action: serveMCP,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
