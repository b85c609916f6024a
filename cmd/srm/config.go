package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jamesainslie/srm/pkg/srm/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `Manage srm configuration settings.

Configuration is loaded from --config, or else:
  1. $XDG_CONFIG_HOME/srm/config.yaml (if set)
  2. ~/.config/srm/config.yaml

Environment variables override the file using the SRM_ prefix:
  SRM_RETENTION_DEFAULT=3d
  SRM_SWEEPER_INTERVAL=10m
  SRM_STORAGE_DIR=/var/tmp/srm`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file path",
	Args:  cobra.NoArgs,
	RunE:  runConfigPath,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default configuration file",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configGetCmd = &cobra.Command{
	Use:   "get KEY",
	Short: "Print one setting",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Change one setting in the configuration file",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List the settings that can be changed with set",
	Args:  cobra.NoArgs,
	Run: func(*cobra.Command, []string) {
		for _, k := range config.Keys() {
			fmt.Fprintln(stdout, k)
		}
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit configuration file",
	Long: `Open the configuration file in your editor ($VISUAL, then $EDITOR,
then vi). A default file is created first if there is none.`,
	Args: cobra.NoArgs,
	RunE: runConfigEdit,
}

func init() {
	configCmd.AddCommand(configShowCmd, configPathCmd, configInitCmd,
		configGetCmd, configSetCmd, configKeysCmd, configEditCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(_ *cobra.Command, _ []string) error {
	if _, err := os.Stat(cfgStore.Path()); err == nil {
		fmt.Fprintf(stdout, "# Config file: %s\n", cfgStore.Path())
	} else {
		fmt.Fprintf(stdout, "# Config file: %s (not found, using defaults)\n", cfgStore.Path())
	}
	if cfgErr != nil {
		printWarn("%v", cfgErr)
	}

	out, err := yaml.Marshal(cfgStore.Viper().AllSettings())
	if err != nil {
		return err
	}
	if _, err := stdout.Write(out); err != nil {
		return err
	}

	var overrides []string
	for _, key := range config.Keys() {
		env := "SRM_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if val, ok := os.LookupEnv(env); ok {
			overrides = append(overrides, fmt.Sprintf("#   %s=%s", env, val))
		}
	}
	if len(overrides) > 0 {
		fmt.Fprintln(stdout, "# Environment overrides:")
		fmt.Fprintln(stdout, strings.Join(overrides, "\n"))
	}
	return nil
}

func runConfigPath(_ *cobra.Command, _ []string) error {
	fmt.Fprintln(stdout, cfgStore.Path())
	if _, err := os.Stat(cfgStore.Path()); os.IsNotExist(err) {
		printVerbose("file does not exist (using defaults)")
	}
	return nil
}

func runConfigInit(_ *cobra.Command, _ []string) error {
	err := config.WriteDefault(cfgStore.Path())
	if errors.Is(err, config.ErrConfigExists) {
		printInfo("Config file already exists: %s", cfgStore.Path())
		printInfo("Use 'srm config edit' to modify it.")
		return nil
	}
	if err != nil {
		return err
	}
	printInfo("Created default config file: %s", cfgStore.Path())
	return nil
}

func runConfigGet(_ *cobra.Command, args []string) error {
	val, ok := cfgStore.Get(args[0])
	if !ok {
		return fmt.Errorf("%s is not set", args[0])
	}
	fmt.Fprintln(stdout, val)
	return nil
}

func runConfigSet(_ *cobra.Command, args []string) error {
	if err := cfgStore.Set(args[0], args[1]); err != nil {
		return err
	}
	printVerbose("wrote %s", cfgStore.Path())
	return nil
}

func runConfigEdit(_ *cobra.Command, _ []string) error {
	path := cfgStore.Path()
	if err := config.WriteDefault(path); err != nil && !errors.Is(err, config.ErrConfigExists) {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	editor := os.Getenv("VISUAL")
	if editor == "" {
		editor = os.Getenv("EDITOR")
	}
	if editor == "" {
		editor = "vi"
	}
	printVerbose("Opening %s with %s", path, editor)

	cmd := exec.Command(editor, path)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("editor command failed: %w", err)
	}
	return nil
}
