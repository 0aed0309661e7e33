package util

import (
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// SetFlagsFromEnvVars updates flags that were not set on the command line from environment variables.
// The variable name is the prefix followed by the upper-cased flag name, e.g. log-level -> NB_UPDATES_LOG_LEVEL.
func SetFlagsFromEnvVars(cmd *cobra.Command, prefix string) {
	visit := func(flags *pflag.FlagSet) {
		flags.VisitAll(func(f *pflag.Flag) {
			if f.Changed {
				return
			}

			envName := prefix + flagNameToUpper(f.Name)
			value, present := os.LookupEnv(envName)
			if !present {
				return
			}

			if err := flags.Set(f.Name, value); err != nil {
				log.Infof("unable to configure flag %s using variable %s, err: %v", f.Name, envName, err)
			}
		})
	}

	visit(cmd.PersistentFlags())
	visit(cmd.Flags())
}

// flagNameToUpper converts a flag name to its corresponding base env name
// replacing dashes by underscores and making the result uppercase
// E.g. log-level -> LOG_LEVEL
func flagNameToUpper(cmdFlag string) string {
	return strings.ToUpper(strings.ReplaceAll(cmdFlag, "-", "_"))
}
