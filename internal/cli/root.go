// Package cli implements the taskgraph command-line interface.
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	verbose bool
	quiet   bool
	jsonOut bool
	noColor bool
	backend string
	dataDir string
)

const (
	groupGraph      = "graph"
	groupAutomation = "automation"
	groupInsight    = "insight"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "taskgraph",
	Short: "Dependency-aware task graph with automation and scheduling",
	Long: `taskgraph keeps projects and tasks in a dependency graph and reacts to
changes: completing a task starts the tasks waiting on it, rules fire actions
on status, priority, tag and date transitions, recurring templates create
tasks on schedule, and overdue work is flagged.

Quick start:
  taskgraph project add "Launch"              Create a project
  taskgraph task add "Design" -p <project>    Add a task
  taskgraph task status <task> done           Complete it
  taskgraph risk                              Show tasks at risk
  taskgraph watch                             Run monitors in the foreground`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		PrintError(err)
	}
	return err
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .taskgraph/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-essential output")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringVar(&backend, "backend", "", "storage backend (file, sqlite, postgres, memory)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory for file and sqlite storage")

	_ = viper.BindPFlag("storage.backend", rootCmd.PersistentFlags().Lookup("backend"))
	_ = viper.BindPFlag("storage.path", rootCmd.PersistentFlags().Lookup("data-dir"))

	rootCmd.AddGroup(
		&cobra.Group{ID: groupGraph, Title: "Graph:"},
		&cobra.Group{ID: groupAutomation, Title: "Automation:"},
		&cobra.Group{ID: groupInsight, Title: "Insight:"},
	)
	addGrouped(groupGraph, newProjectCmd(), newTaskCmd(), newPlanCmd(), newSuggestCmd())
	addGrouped(groupAutomation, newRuleCmd(), newRecurCmd(), newWatchCmd())
	addGrouped(groupInsight, newRiskCmd(), newScheduleCmd(), newMetricsCmd(), newNotificationsCmd())
	rootCmd.AddCommand(newConfigCmd(), newVersionCmd())
}

func addGrouped(group string, cmds ...*cobra.Command) {
	for _, c := range cmds {
		c.GroupID = group
	}
	rootCmd.AddCommand(cmds...)
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Search for config in .taskgraph directory
		viper.AddConfigPath(".taskgraph")
		viper.AddConfigPath("$HOME/.taskgraph")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("TASKGRAPH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if verbose {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}
