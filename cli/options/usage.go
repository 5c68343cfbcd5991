package options

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
)

const flagGroupAnnotation = "group"

const defaultHelpGroup = "General Options"

// PrintUsage prints every flag of set, grouped by their help group
// annotation in the order the groups were first seen.
func PrintUsage(w io.Writer, set *pflag.FlagSet) {
	fmt.Fprintf(w, "Usage: %s -r <image> (-d <video> | --camera <id>) "+
		"[flags]\n\n", filepath.Base(os.Args[0]))

	helpGroupLists := make(map[string][]*pflag.Flag)
	var helpGroupOrder []string
	var longestFlagName, longestHelpMessage, longestDefaultVal int

	set.VisitAll(func(f *pflag.Flag) {
		flagGroup := helpGroup(f)

		if _, helpGroupExists := helpGroupLists[flagGroup]; !helpGroupExists {
			helpGroupOrder = append(helpGroupOrder, flagGroup)
		}
		helpGroupLists[flagGroup] = append(helpGroupLists[flagGroup], f)

		longestFlagName = max(longestFlagName, len(flagLabel(f))+1)
		longestHelpMessage = max(longestHelpMessage, len(f.Usage)+1)
		longestDefaultVal = max(longestDefaultVal, len(getDefaultString(f))+1)
	})

	for _, helpGroupName := range helpGroupOrder {
		fmt.Fprint(w, colorText(hiYellow, helpGroupName+":\n"))
		for _, f := range helpGroupLists[helpGroupName] {
			printFormattedFlag(w, f, longestFlagName, longestHelpMessage,
				longestDefaultVal)
		}
		fmt.Fprint(w, "\n")
	}
}

func helpGroup(f *pflag.Flag) string {
	if groups := f.Annotations[flagGroupAnnotation]; len(groups) > 0 {
		return groups[0]
	}
	return defaultHelpGroup
}

// flagLabel returns "-r, --reference" for flags with a shorthand and
// "--window" otherwise.
func flagLabel(f *pflag.Flag) string {
	if f.Shorthand != "" {
		return fmt.Sprintf("-%s, --%s", f.Shorthand, f.Name)
	}
	return "    --" + f.Name
}

func printFormattedFlag(w io.Writer, f *pflag.Flag, maxFlagName, maxHelpText,
	maxDef int) {
	defaultValue := getDefaultString(f)
	defaultValuePadding := strings.Repeat(" ", maxDef-len(defaultValue))

	helpPadding := strings.Repeat(" ", maxHelpText-len(f.Usage))
	defaultTxt := colorText(darkPurple, fmt.Sprintf(
		"%sDefault: %s%s", helpPadding, defaultValuePadding, defaultValue))

	label := flagLabel(f)
	flagPadding := strings.Repeat(" ", maxFlagName-len(label))
	flagName := colorText(cyan, label+flagPadding)

	usageText := colorText(green, f.Usage)

	fmt.Fprintf(w, "\t%s %s   %s\n", flagName, usageText, defaultTxt)
}

// ANSI color codes

type color string

const (
	cyan       color = "\033[96m" // Bright cyan
	darkPurple color = "\033[38;5;55m"
	hiYellow   color = "\033[93m" // Bright yellow
	green      color = "\033[92m" // Bright green
)

const reset = "\033[0m"

func colorText(c color, text string) string { return string(c) + text + reset }

func getDefaultString(f *pflag.Flag) string {
	if f.DefValue == "" {
		return "\"\""
	}
	return f.DefValue
}

func addFlagToHelpGroup(set *pflag.FlagSet, flagName string,
	helpGroupName string) {
	lookupFlag := set.Lookup(flagName)
	if lookupFlag == nil {
		panic("unknown flag: " + flagName)
	}

	if lookupFlag.Annotations == nil {
		lookupFlag.Annotations = map[string][]string{}
	}
	lookupFlag.Annotations[flagGroupAnnotation] = []string{helpGroupName}
}

// PrintError reports a command line mistake followed by the usage of set.
func PrintError(w io.Writer, set *pflag.FlagSet, err error) {
	fmt.Fprintln(w, colorText(hiYellow, "error: ")+err.Error())
	PrintUsage(w, set)
}
