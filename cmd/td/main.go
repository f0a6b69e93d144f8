package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"taskdag/internal/command"
	"taskdag/internal/graph"
	"taskdag/internal/state"
	"taskdag/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "td",
	Short: "Append-only task log with dependency tracking",
	Long: `td - append-only task log for AI coding agents

All mutations are appends to a JSONL event log; current state is replayed
from the full history on every command. Results are JSON documents.`,
}

func main() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().String("dir", "", "directory to search for the .taskdag marker (default: cwd)")
	_ = viper.BindPFlag("dir", rootCmd.PersistentFlags().Lookup("dir"))

	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("TASKDAG")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// openStore locates the repository or exits with a not_initialized document.
func openStore() *store.Store {
	s, err := store.Find(viper.GetString("dir"))
	if err != nil {
		fail(err)
	}
	return s
}

// emit writes the command's single result document to stdout.
func emit(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fail(err)
	}
	fmt.Println(string(data))
}

// fail writes a structured error document to stderr and exits non-zero.
func fail(err error) {
	doc := command.AsError(err)
	data, merr := json.MarshalIndent(doc, "", "  ")
	if merr != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Fprintln(os.Stderr, string(data))
	os.Exit(1)
}

func registerCommands() {
	rootCmd.AddCommand(&cobra.Command{
		Use:     "version",
		Aliases: []string{"v"},
		Short:   "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(buildVersionString())
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Initialize a taskdag repository",
		Run: func(cmd *cobra.Command, args []string) {
			result, err := command.Init(viper.GetString("dir"))
			if err != nil {
				fail(err)
			}
			emit(result)
		},
	})

	createCmd := &cobra.Command{
		Use:   "create <title>",
		Short: "Create a new task",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			deps, _ := cmd.Flags().GetStringArray("dep")
			blocks, _ := cmd.Flags().GetStringArray("blocks")
			labels, _ := cmd.Flags().GetStringArray("label")
			notes, _ := cmd.Flags().GetString("notes")

			result, err := command.Create(openStore(), args[0], deps, blocks, labels, notes)
			if err != nil {
				fail(err)
			}
			emit(result)
		},
	}
	createCmd.Flags().StringArrayP("dep", "d", nil, "dependency task ID (repeatable)")
	createCmd.Flags().StringArrayP("blocks", "b", nil, "task ID this task blocks (repeatable)")
	createCmd.Flags().StringArrayP("label", "l", nil, "label (repeatable)")
	createCmd.Flags().StringP("notes", "n", "", "task notes")
	rootCmd.AddCommand(createCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "done <id>",
		Short: "Mark a task as done",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			result, err := command.Done(openStore(), args[0])
			if err != nil {
				fail(err)
			}
			emit(result)
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "reopen <id>",
		Short: "Reopen a completed task",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			result, err := command.Reopen(openStore(), args[0])
			if err != nil {
				fail(err)
			}
			emit(result)
		},
	})

	depCmd := &cobra.Command{
		Use:   "dep <id>",
		Short: "Add or remove a dependency",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			on, _ := cmd.Flags().GetString("on")
			remove, _ := cmd.Flags().GetBool("remove")

			result, err := command.Dep(openStore(), args[0], on, remove)
			if err != nil {
				fail(err)
			}
			emit(result)
		},
	}
	depCmd.Flags().String("on", "", "dependency task ID")
	depCmd.Flags().BoolP("remove", "r", false, "remove the dependency")
	_ = depCmd.MarkFlagRequired("on")
	rootCmd.AddCommand(depCmd)

	blockCmd := &cobra.Command{
		Use:   "block <id>",
		Short: "Mark a task as blocking another",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			target, _ := cmd.Flags().GetString("blocks")
			remove, _ := cmd.Flags().GetBool("remove")

			result, err := command.Block(openStore(), args[0], target, remove)
			if err != nil {
				fail(err)
			}
			emit(result)
		},
	}
	blockCmd.Flags().String("blocks", "", "task being blocked")
	blockCmd.Flags().BoolP("remove", "r", false, "remove the block")
	_ = blockCmd.MarkFlagRequired("blocks")
	rootCmd.AddCommand(blockCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		Run: func(cmd *cobra.Command, args []string) {
			status, _ := cmd.Flags().GetString("status")
			asTable, _ := cmd.Flags().GetBool("table")

			result, err := command.List(openStore(), status)
			if err != nil {
				fail(err)
			}
			if asTable {
				renderTaskTable(result.Tasks)
				return
			}
			emit(result)
		},
	}
	listCmd.Flags().StringP("status", "s", "open", "filter by status (open|done|all)")
	listCmd.Flags().Bool("table", false, "render as a table instead of JSON")
	rootCmd.AddCommand(listCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Show task details",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			result, err := command.Show(openStore(), args[0])
			if err != nil {
				fail(err)
			}
			emit(result)
		},
	})

	readyCmd := &cobra.Command{
		Use:   "ready",
		Short: "List tasks ready to work on",
		Run: func(cmd *cobra.Command, args []string) {
			asTable, _ := cmd.Flags().GetBool("table")

			result, err := command.ReadyList(openStore())
			if err != nil {
				fail(err)
			}
			if asTable {
				renderTaskTable(result.Tasks)
				return
			}
			emit(result)
		},
	}
	readyCmd.Flags().Bool("table", false, "render as a table instead of JSON")
	rootCmd.AddCommand(readyCmd)

	graphCmd := &cobra.Command{
		Use:   "graph",
		Short: "Show the dependency graph",
		Run: func(cmd *cobra.Command, args []string) {
			format, _ := cmd.Flags().GetString("format")
			all, _ := cmd.Flags().GetBool("all")

			g, err := command.GraphDoc(openStore(), all)
			if err != nil {
				fail(err)
			}
			if format == "mermaid" {
				fmt.Println(graph.Mermaid(*g))
				return
			}
			emit(g)
		},
	}
	graphCmd.Flags().StringP("format", "f", "json", "output format (json|mermaid)")
	graphCmd.Flags().BoolP("all", "a", false, "include done tasks")
	rootCmd.AddCommand(graphCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "prime",
		Short: "Output context for AI agents",
		Run: func(cmd *cobra.Command, args []string) {
			result, err := command.Prime(openStore())
			if err != nil {
				fail(err)
			}
			emit(result)
		},
	})

	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Commit the log directory with git",
		Run: func(cmd *cobra.Command, args []string) {
			message, _ := cmd.Flags().GetString("message")

			result, err := command.Sync(openStore(), message)
			if err != nil {
				fail(err)
			}
			emit(result)
		},
	}
	syncCmd.Flags().StringP("message", "m", "", "commit message")
	rootCmd.AddCommand(syncCmd)

	updateCmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update task title, notes, or labels",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			title, _ := cmd.Flags().GetString("title")
			notes, _ := cmd.Flags().GetString("notes")
			labels, _ := cmd.Flags().GetStringArray("label")

			result, err := command.Update(openStore(), args[0], title, notes, labels)
			if err != nil {
				fail(err)
			}
			emit(result)
		},
	}
	updateCmd.Flags().StringP("title", "t", "", "new title")
	updateCmd.Flags().StringP("notes", "n", "", "new notes (replaces)")
	updateCmd.Flags().StringArrayP("label", "l", nil, "labels (replaces all)")
	rootCmd.AddCommand(updateCmd)
}

func renderTaskTable(tasks []*state.Task) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Title", "Status", "Deps", "Labels"})
	for _, t := range tasks {
		tw.AppendRow(table.Row{t.ID, t.Title, t.Status, strings.Join(t.Deps, ","), strings.Join(t.Labels, ",")})
	}
	tw.Render()
}
