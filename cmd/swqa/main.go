// Copyright 2024 Hedgehog
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/samber/lo"
	slogmulti "github.com/samber/slog-multi"
	"github.com/urfave/cli/v2"
	"go.githedgehog.com/switchqa/pkg/dut"
	"go.githedgehog.com/switchqa/pkg/power"
	"go.githedgehog.com/switchqa/pkg/swqa"
	"go.githedgehog.com/switchqa/pkg/version"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	FlagCatGlobal     = "Global options:"
	FlagNameTestbed   = "testbed"
	FlagNameDUT       = "dut"
	FlagNameFailFast  = "fail-fast"
	FlagRegEx         = "regex"
	FlagInvertRegex   = "invert-regex"
	FlagResultsFile   = "results-file"
	FlagExtended      = "extended"
	FlagPauseOnFail   = "pause-on-fail"
	FlagNoLogAnalyzer = "no-log-analyzer"
	FlagDownloadDir   = "download-dir"
	FlagNamePlayer    = "player"
	FlagNameParam     = "param"
	FlagNameOS        = "os"
	FlagNameRepo      = "repo"
	FlagNamePath      = "path"
	FlagNameName      = "name"
	FlagNameLimit     = "limit"
	FlagNameDownload  = "download"
	FlagNameAction    = "action"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := Run(ctx); err != nil {
		slog.Error(err.Error())
		cancel()
		os.Exit(1) //nolint:gocritic
	}
}

func Run(ctx context.Context) error {
	var verbose, brief, yes bool
	verboseFlag := &cli.BoolFlag{
		Name:        "verbose",
		Aliases:     []string{"v"},
		Usage:       "verbose output (includes debug)",
		EnvVars:     []string{"SWQA_VERBOSE"},
		Destination: &verbose,
		Category:    FlagCatGlobal,
	}
	briefFlag := &cli.BoolFlag{
		Name:        "brief",
		Aliases:     []string{"b"},
		Usage:       "brief output (only warn and error)",
		EnvVars:     []string{"SWQA_BRIEF"},
		Destination: &brief,
		Category:    FlagCatGlobal,
	}
	yesFlag := &cli.BoolFlag{
		Name:        "yes",
		Aliases:     []string{"y"},
		Usage:       "assume yes",
		Destination: &yes,
	}
	yesCheck := func(_ *cli.Context) error {
		if !yes {
			return cli.Exit("\033[31mWARNING:\033[0m Potentially dangerous operation. Please confirm with --yes if you're sure.", 1)
		}

		return nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("getting user home dir: %w", err)
	}

	var logFilePath string
	logFileFlag := &cli.StringFlag{
		Name:        "log-file",
		Usage:       "write debug log to `FILE`",
		EnvVars:     []string{"SWQA_LOG_FILE"},
		Value:       filepath.Join(home, ".swqa", "swqa.log"),
		Destination: &logFilePath,
		Category:    FlagCatGlobal,
	}

	var testbedPath string
	testbedFlag := &cli.StringFlag{
		Name:        FlagNameTestbed,
		Aliases:     []string{"t"},
		Usage:       "testbed description `FILE`",
		EnvVars:     []string{"SWQA_TESTBED"},
		Value:       "testbed.yaml",
		Destination: &testbedPath,
		Category:    FlagCatGlobal,
	}

	var dutName string
	dutFlag := &cli.StringFlag{
		Name:        FlagNameDUT,
		Aliases:     []string{"d"},
		Usage:       "`NAME` of the DUT from the testbed, optional if there is only one, asked for on a terminal otherwise",
		EnvVars:     []string{"SWQA_DUT"},
		Destination: &dutName,
	}

	before := func(quiet bool) cli.BeforeFunc {
		return func(_ *cli.Context) error {
			if verbose && brief {
				return cli.Exit("verbose and brief are mutually exclusive", 1)
			}

			logLevel := slog.LevelInfo
			if verbose {
				logLevel = slog.LevelDebug
			} else if brief {
				logLevel = slog.LevelWarn
			}

			logW := os.Stderr

			if err := os.MkdirAll(filepath.Dir(logFilePath), 0o755); err != nil {
				return fmt.Errorf("creating log dir: %w", err)
			}

			logFile := &lumberjack.Logger{
				Filename:   logFilePath,
				MaxSize:    5, // MB
				MaxBackups: 4,
				MaxAge:     30, // days
				Compress:   true,
				FileMode:   0o644,
			}

			slog.SetDefault(slog.New(slogmulti.Fanout(
				tint.NewHandler(logW, &tint.Options{
					Level:      logLevel,
					TimeFormat: time.TimeOnly,
					NoColor:    !isatty.IsTerminal(logW.Fd()),
				}),
				slog.NewTextHandler(logFile, &slog.HandlerOptions{
					Level: slog.LevelDebug,
				}),
			)))

			if quiet {
				return nil
			}

			slog.Info("Hedgehog Switch QA", "version", version.Version)

			return nil
		}
	}

	defaultFlags := []cli.Flag{
		verboseFlag,
		briefFlag,
		logFileFlag,
	}

	testFlags := []cli.Flag{
		&cli.StringSliceFlag{
			Name:    FlagRegEx,
			Aliases: []string{"r"},
			Usage:   "run only tests matched by regular expression. can be repeated",
		},
		&cli.BoolFlag{
			Name:    FlagInvertRegex,
			Aliases: []string{"i"},
			Usage:   "invert regex match",
		},
		&cli.BoolFlag{
			Name:    FlagExtended,
			Aliases: []string{"e"},
			Usage:   "run extended tests",
		},
		&cli.BoolFlag{
			Name:    FlagNameFailFast,
			Aliases: []string{"f"},
			Usage:   "stop testing on first failure",
		},
	}

	powerActions := lo.Map(power.Actions, func(a power.Action, _ int) string { return string(a) })
	osNames := lo.Map(dut.OSes, func(o dut.OS, _ int) string { return string(o) })

	cli.VersionFlag.(*cli.BoolFlag).Aliases = []string{"V"}
	app := &cli.App{
		Name:  "swqa",
		Usage: "hedgehog switch qa - run validation suites against SONiC and NVOS switches",
		Description: `Validate a switch (DUT) described in a testbed file:
	1.  Describe DUTs, traffic hosts and services in testbed.yaml
	2.  List the suites with 'swqa list'
	3.  Run them with 'swqa run', optionally selecting tests with --regex
	4.  Use 'swqa mars' to run the suites from a remote player`,
		Version:                version.Version,
		Suggest:                true,
		UseShortOptionHandling: true,
		EnableBashCompletion:   true,
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run the validation suites against a DUT",
				Flags: flatten(defaultFlags, testFlags, []cli.Flag{
					testbedFlag,
					dutFlag,
					&cli.StringFlag{
						Name:  FlagResultsFile,
						Usage: "path to a file to export test results to in JUnit XML format",
					},
					&cli.BoolFlag{
						Name:    FlagPauseOnFail,
						Aliases: []string{"p"},
						Usage:   "pause testing on each test failure (for troubleshooting)",
					},
					&cli.BoolFlag{
						Name:  FlagNoLogAnalyzer,
						Usage: "don't check the DUT syslog around the tests",
					},
					&cli.StringFlag{
						Name:    FlagDownloadDir,
						Usage:   "keep downloaded firmware images in `DIR`",
						EnvVars: []string{"SWQA_DOWNLOAD_DIR"},
					},
				}),
				Before: before(false),
				Action: func(c *cli.Context) error {
					if err := swqa.DoRun(ctx, swqa.RunOpts{
						Testbed:       testbedPath,
						DUT:           dutName,
						Regexes:       c.StringSlice(FlagRegEx),
						InvertRegex:   c.Bool(FlagInvertRegex),
						ResultsFile:   c.String(FlagResultsFile),
						Extended:      c.Bool(FlagExtended),
						FailFast:      c.Bool(FlagNameFailFast),
						PauseOnFail:   c.Bool(FlagPauseOnFail),
						NoLogAnalyzer: c.Bool(FlagNoLogAnalyzer),
						DownloadDir:   c.String(FlagDownloadDir),
						Pick:          swqa.TerminalPicker(),
					}); err != nil {
						return fmt.Errorf("run: %w", err)
					}

					return nil
				},
			},
			{
				Name:  "list",
				Usage: "list suites and tests with their skip flags",
				Flags: flatten(defaultFlags, []cli.Flag{
					&cli.StringFlag{
						Name:  FlagNameOS,
						Usage: "DUT os: one of " + strings.Join(osNames, ", "),
						Value: string(dut.OSSONiC),
					},
				}),
				Before: before(true),
				Action: func(c *cli.Context) error {
					if err := swqa.DoList(ctx, dut.OS(c.String(FlagNameOS))); err != nil {
						return fmt.Errorf("list: %w", err)
					}

					return nil
				},
			},
			{
				Name:      "exec",
				Usage:     "run a command on the DUT and print its output",
				ArgsUsage: "<command>",
				Flags:     flatten(defaultFlags, []cli.Flag{testbedFlag, dutFlag}),
				Before:    before(true),
				Action: func(c *cli.Context) error {
					if c.NArg() == 0 {
						return cli.Exit("command is required", 1)
					}

					if err := swqa.DoExec(ctx, testbedPath, dutName, strings.Join(c.Args().Slice(), " "), swqa.TerminalPicker()); err != nil {
						return fmt.Errorf("exec: %w", err)
					}

					return nil
				},
			},
			{
				Name:  "mars",
				Usage: "run the suites on a remote player and collect the results",
				Flags: flatten(defaultFlags, testFlags, []cli.Flag{
					testbedFlag,
					dutFlag,
					&cli.StringFlag{
						Name:    FlagNamePlayer,
						Aliases: []string{"P"},
						Usage:   "`NAME` of the player from the testbed, optional if there is only one",
						EnvVars: []string{"SWQA_PLAYER"},
					},
					&cli.StringFlag{
						Name:  FlagResultsFile,
						Usage: "path to store the JUnit XML results downloaded from the player",
					},
				}),
				Before: before(false),
				Action: func(c *cli.Context) error {
					if err := swqa.DoMars(ctx, swqa.MarsOpts{
						Testbed:     testbedPath,
						Player:      c.String(FlagNamePlayer),
						DUT:         dutName,
						Regexes:     c.StringSlice(FlagRegEx),
						InvertRegex: c.Bool(FlagInvertRegex),
						FailFast:    c.Bool(FlagNameFailFast),
						Extended:    c.Bool(FlagExtended),
						Verbose:     verbose,
						ResultsFile: c.String(FlagResultsFile),
					}); err != nil {
						return fmt.Errorf("mars: %w", err)
					}

					return nil
				},
			},
			{
				Name:  "template",
				Usage: "config templates",
				Subcommands: []*cli.Command{
					{
						Name:      "render",
						Usage:     "print the commands or the patch a template would push, lists templates if no name given",
						ArgsUsage: "[name]",
						Flags: flatten(defaultFlags, []cli.Flag{
							&cli.StringFlag{
								Name:    FlagNameTestbed,
								Aliases: []string{"t"},
								Usage:   "also load the templates of testbed `FILE`",
								EnvVars: []string{"SWQA_TESTBED"},
							},
							&cli.StringSliceFlag{
								Name:  FlagNameParam,
								Usage: "template param as key=value. can be repeated",
							},
						}),
						Before: before(true),
						Action: func(c *cli.Context) error {
							if err := swqa.DoTemplateRender(c.String(FlagNameTestbed), c.Args().First(), c.StringSlice(FlagNameParam)); err != nil {
								return fmt.Errorf("template render: %w", err)
							}

							return nil
						},
					},
				},
			},
			{
				Name:      "skip-check",
				Usage:     "evaluate the testbed skip rules against the DUT",
				ArgsUsage: "[test name...]",
				Flags:     flatten(defaultFlags, []cli.Flag{testbedFlag, dutFlag}),
				Before:    before(true),
				Action: func(c *cli.Context) error {
					if err := swqa.DoSkipCheck(ctx, testbedPath, dutName, c.Args().Slice(), swqa.TerminalPicker()); err != nil {
						return fmt.Errorf("skip-check: %w", err)
					}

					return nil
				},
			},
			{
				Name:  "artifacts",
				Usage: "artifact storage",
				Subcommands: []*cli.Command{
					{
						Name:  "search",
						Usage: "search artifacts, newest first, and optionally download the newest",
						Flags: flatten(defaultFlags, []cli.Flag{
							testbedFlag,
							&cli.StringFlag{
								Name:     FlagNameRepo,
								Usage:    "repository to search in",
								Required: true,
							},
							&cli.StringFlag{
								Name:  FlagNamePath,
								Usage: "path wildcard",
							},
							&cli.StringFlag{
								Name:    FlagNameName,
								Aliases: []string{"n"},
								Usage:   "name wildcard",
							},
							&cli.IntFlag{
								Name:  FlagNameLimit,
								Usage: "max results",
								Value: swqa.DefaultSearchLimit,
							},
							&cli.StringFlag{
								Name:  FlagNameDownload,
								Usage: "download the newest match to `PATH`",
							},
						}),
						Before: before(true),
						Action: func(c *cli.Context) error {
							if err := swqa.DoArtifactsSearch(ctx, testbedPath, swqa.SearchOpts{
								Repo:     c.String(FlagNameRepo),
								Path:     c.String(FlagNamePath),
								Name:     c.String(FlagNameName),
								Limit:    c.Int(FlagNameLimit),
								Download: c.String(FlagNameDownload),
							}); err != nil {
								return fmt.Errorf("artifacts search: %w", err)
							}

							return nil
						},
					},
				},
			},
			{
				Name:  "power",
				Usage: "manage DUT power state using the PDU (if no DUTs specified, all DUTs will be affected)",
				Flags: flatten(defaultFlags, []cli.Flag{
					testbedFlag,
					&cli.StringSliceFlag{
						Name:    FlagNameName,
						Aliases: []string{"n"},
						Usage:   "DUT name to manage power",
					},
					&cli.StringFlag{
						Name:    FlagNameAction,
						Aliases: []string{"a"},
						Usage:   "power action: one of " + strings.Join(powerActions, ", "),
						Value:   string(power.ActionCycle),
					},
					yesFlag,
				}),
				Before: before(false),
				Action: func(c *cli.Context) error {
					if err := yesCheck(c); err != nil {
						return err
					}

					action := power.Action(strings.ToLower(c.String(FlagNameAction)))
					if err := swqa.DoPower(ctx, testbedPath, c.StringSlice(FlagNameName), action); err != nil {
						return fmt.Errorf("power: %w", err)
					}

					return nil
				},
			},
		},
	}

	return app.Run(os.Args) //nolint:wrapcheck
}

func flatten[T any, Slice ~[]T](collection ...Slice) Slice {
	return lo.Flatten(collection)
}
