// compatcheck evaluates a PC build for compatibility from the command line.
//
// Usage:
//
//	compatcheck file build.yaml
//	compatcheck ids --db pcbuild.db --component <id>[:qty] --component <id>
//	compatcheck remote --server http://localhost:8080 --component <id> [--save NAME]
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/tphummel/pcbuild/internal/apiclient"
	"github.com/tphummel/pcbuild/internal/builds"
	"github.com/tphummel/pcbuild/internal/compat"
	"github.com/tphummel/pcbuild/internal/db"
	"github.com/tphummel/pcbuild/internal/models"
)

var (
	version = "dev"
	commit  = "none"
)

// errIncompatible makes the process exit non-zero after the report is printed.
var errIncompatible = cli.Exit("", 1)

func main() {
	err := newApp(os.Stdout).Run(os.Args)
	if err != nil && !errors.Is(err, errIncompatible) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(exitCode(err))
}

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:           "compatcheck",
		Usage:          "Check a PC component selection for compatibility",
		Version:        fmt.Sprintf("%s (commit: %s)", version, commit),
		Writer:         out,
		ExitErrHandler: deferExit,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the report as JSON",
			},
		},
		Commands: []*cli.Command{
			fileCommand(),
			idsCommand(),
			remoteCommand(),
		},
	}
}

// deferExit leaves exit handling to main so reports are flushed first and
// tests can run the app in-process.
func deferExit(*cli.Context, error) {}

// buildFile is the YAML document read by the file command.
type buildFile struct {
	Components []compat.ResolvedComponent `yaml:"components"`
}

func fileCommand() *cli.Command {
	return &cli.Command{
		Name:      "file",
		Usage:     "Evaluate components described inline in a YAML file",
		ArgsUsage: "<build.yaml>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("expected exactly one build file, got %d", c.NArg())
			}
			components, err := readBuildFile(c.Args().First())
			if err != nil {
				return err
			}
			report, err := compat.Evaluate(components)
			if err != nil {
				return err
			}
			return printReport(c.App.Writer, report, c.Bool("json"))
		},
	}
}

func idsCommand() *cli.Command {
	return &cli.Command{
		Name:  "ids",
		Usage: "Evaluate catalog components by ID",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "db",
				Value:   "./pcbuild.db",
				Usage:   "Path to the SQLite catalog",
				EnvVars: []string{"DB_PATH"},
			},
			&cli.StringSliceFlag{
				Name:     "component",
				Aliases:  []string{"c"},
				Usage:    "Component ID, optionally suffixed with :quantity",
				Required: true,
			},
		},
		Action: func(c *cli.Context) error {
			items, err := parseComponentRefs(c.StringSlice("component"))
			if err != nil {
				return err
			}
			database, err := db.New(c.String("db"))
			if err != nil {
				return fmt.Errorf("open catalog: %w", err)
			}
			defer database.Close()

			svc := &builds.Service{Catalog: database}
			report, err := svc.Check(context.Background(), items)
			if err != nil {
				return err
			}
			return printReport(c.App.Writer, report, c.Bool("json"))
		},
	}
}

func remoteCommand() *cli.Command {
	return &cli.Command{
		Name:  "remote",
		Usage: "Evaluate catalog components against a running pcbuild server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Value:   "http://localhost:8080",
				Usage:   "Base URL of the pcbuild API",
				EnvVars: []string{"PCBUILD_SERVER"},
			},
			&cli.StringFlag{
				Name:    "token",
				Usage:   "Bearer token, required with --save",
				EnvVars: []string{"API_TOKEN"},
			},
			&cli.StringSliceFlag{
				Name:     "component",
				Aliases:  []string{"c"},
				Usage:    "Component ID, optionally suffixed with :quantity",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "save",
				Usage: "Save the selection as a private build with this name",
			},
		},
		Action: func(c *cli.Context) error {
			items, err := parseComponentRefs(c.StringSlice("component"))
			if err != nil {
				return err
			}
			client := apiclient.NewClient(strings.TrimRight(c.String("server"), "/"), c.String("token"))

			name := c.String("save")
			if name == "" {
				report, err := client.CheckCompatibility(c.Context, items)
				if err != nil {
					return err
				}
				return printReport(c.App.Writer, report, c.Bool("json"))
			}
			build, err := client.CreateBuild(c.Context, builds.CreateRequest{Name: name, Components: items})
			if err != nil {
				return err
			}
			if !c.Bool("json") {
				fmt.Fprintf(c.App.Writer, "Saved build %s (total $%s)\n", build.ID, build.TotalPrice.StringFixed(2))
			}
			return printReport(c.App.Writer, build.Compatibility, c.Bool("json"))
		},
	}
}

func readBuildFile(path string) ([]compat.ResolvedComponent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read build file: %w", err)
	}
	var f buildFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse build file: %w", err)
	}
	for i := range f.Components {
		if f.Components[i].Quantity == 0 {
			f.Components[i].Quantity = 1
		}
		if f.Components[i].ComponentID == "" {
			f.Components[i].ComponentID = strconv.Itoa(i + 1)
		}
	}
	return f.Components, nil
}

// parseComponentRefs turns "id" and "id:qty" arguments into selection items.
func parseComponentRefs(refs []string) ([]models.SelectionItem, error) {
	items := make([]models.SelectionItem, 0, len(refs))
	for _, ref := range refs {
		id, qty, found := strings.Cut(ref, ":")
		item := models.SelectionItem{ComponentID: id, Quantity: 1}
		if found {
			n, err := strconv.Atoi(qty)
			if err != nil {
				return nil, fmt.Errorf("component %q: invalid quantity %q", id, qty)
			}
			item.Quantity = n
		}
		items = append(items, item)
	}
	return items, nil
}

func printReport(w io.Writer, r *compat.Report, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(r); err != nil {
			return err
		}
	} else {
		writeText(w, r)
	}
	if !r.IsCompatible {
		return errIncompatible
	}
	return nil
}

func writeText(w io.Writer, r *compat.Report) {
	verdict := "compatible"
	if !r.IsCompatible {
		verdict = "INCOMPATIBLE"
	}
	fmt.Fprintf(w, "Build is %s (%d components)\n", verdict, r.ComponentCount)
	if r.TotalPowerDraw != nil && r.RecommendedWattage != nil {
		fmt.Fprintf(w, "Estimated power draw: %gW, recommended PSU: %dW\n", *r.TotalPowerDraw, *r.RecommendedWattage)
	}
	section := func(title string, lines []string) {
		if len(lines) == 0 {
			return
		}
		fmt.Fprintf(w, "\n%s:\n", title)
		for _, l := range lines {
			fmt.Fprintf(w, "  - %s\n", l)
		}
	}
	section("Errors", r.Errors)
	section("Warnings", r.Warnings)
	section("Recommendations", r.Recommendations)
}

// exitCode maps a command error to the process exit status.
func exitCode(err error) int {
	var coder cli.ExitCoder
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	if err != nil {
		return 1
	}
	return 0
}
