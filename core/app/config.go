package app

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/pkg/errors"
	flag "github.com/spf13/pflag"

	"github.com/iotaledger/hive.go/configuration"
)

func getList(a []string) string {
	sort.Strings(a)
	return "\n   - " + strings.Join(a, "\n   - ")
}

// merges the flag sets of all plugins per config.
func normalizeFlagSets(params map[string][]*flag.FlagSet) (map[string]*flag.FlagSet, error) {
	fs := make(map[string]*flag.FlagSet)
	for cfgName, flagSets := range params {

		if _, has := cfgNames[cfgName]; !has {
			return nil, errors.Wrap(ErrConfigDoesNotExist, cfgName)
		}

		flagsUnderSameCfg := flag.NewFlagSet("", flag.ContinueOnError)
		for _, flagSet := range flagSets {
			flagSet.VisitAll(func(f *flag.Flag) {
				flagsUnderSameCfg.AddFlag(f)
			})
		}
		fs[cfgName] = flagsUnderSameCfg
	}
	return fs, nil
}

// loads the config file, the environment variables and the flags, in ascending precedence.
func loadCfg(flagSets map[string]*flag.FlagSet) error {
	return loadConfiguration(nodeConfig, *nodeCfgFilePath, hasFlag(flag.CommandLine, CfgConfigFilePathNodeConfig), flagSets["nodeConfig"])
}

func loadConfiguration(config *configuration.Configuration, filePath string, filePathGiven bool, flagSet *flag.FlagSet) error {
	if err := config.LoadFile(filePath); err != nil {
		if filePathGiven {
			// the file was explicitly specified
			return errors.Wrapf(err, "unable to load config file %s", filePath)
		}
		fmt.Printf("No config file found via '%s'. Loading default settings.\n", filePath)
	}

	if flagSet == nil {
		return nil
	}

	// load the flags to set the default values
	if err := config.LoadFlagSet(flagSet); err != nil {
		return err
	}

	// env vars are only applied to keys which already exist
	if err := config.LoadEnvironmentVars(""); err != nil {
		return err
	}

	// load the flags again to overwrite env vars that were also set via command line
	return config.LoadFlagSet(flagSet)
}

func hasFlag(flagSet *flag.FlagSet, name string) bool {
	has := false
	flagSet.Visit(func(f *flag.Flag) {
		if f.Name == name {
			has = true
		}
	})
	return has
}

// prints the loaded configuration, but hides sensitive information.
func printConfig(maskedKeys []string) {
	nodeConfig.Print(maskedKeys)

	enablePlugins := nodeConfig.Strings(CfgNodeEnablePlugins)
	disablePlugins := nodeConfig.Strings(CfgNodeDisablePlugins)

	if len(enablePlugins) > 0 {
		fmt.Printf("\nThe following plugins are enabled: %s\n", getList(enablePlugins))
	}
	if len(disablePlugins) > 0 {
		fmt.Printf("\nThe following plugins are disabled: %s\n", getList(disablePlugins))
	}
}

// adds the given flag sets to flag.CommandLine and then parses them.
func parseFlags(flagSets map[string]*flag.FlagSet) {
	for _, flagSet := range flagSets {
		flag.CommandLine.AddFlagSet(flagSet)
	}
	flag.Parse()
}

// hides all non essential flags from the help/usage text.
func hideConfigFlags(flagSets map[string]*flag.FlagSet) {
	hide := func(f *flag.Flag) {
		_, notHidden := nonHiddenFlag[f.Name]
		f.Hidden = !notHidden
	}

	flag.VisitAll(hide)
	for _, flagSet := range flagSets {
		flagSet.VisitAll(hide)
	}
}

// prints out the version of this node.
func printVersion(flagSets map[string]*flag.FlagSet) {
	if *version {
		fmt.Println(Name + " " + Version)
		os.Exit(0)
	}

	if *help {
		if !*helpFull {
			hideConfigFlags(flagSets)
		}
		flag.Usage()
		os.Exit(0)
	}
}
